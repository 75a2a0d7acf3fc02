package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInfoCmd() *cobra.Command {
	var slot int

	cmd := &cobra.Command{
		Use:   "info <archive>",
		Short: "Summarize an archive or one conversation slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadArchive(args[0])
			if err != nil {
				return err
			}

			if slot < 0 {
				occupied := 0
				for i := 0; i < a.NumSlots(); i++ {
					if len(a.Slot(i)) > 0 {
						occupied++
					}
				}
				fmt.Printf("%s: %d slots, %d occupied\n", args[0], a.NumSlots(), occupied)
				for i := 0; i < a.NumSlots(); i++ {
					rec := a.Slot(i)
					if len(rec) == 0 {
						continue
					}
					c, err := a.DecodeSlot(i)
					if err != nil {
						fmt.Printf("  slot %3d: %d bytes (undecodable: %v)\n", i, len(rec), err)
						continue
					}
					fmt.Printf("  slot %3d: %d code words, %d imports, block %04x\n",
						i, len(c.Code), len(c.Imports), c.Header.StringBlock)
				}
				return nil
			}

			c, err := a.DecodeSlot(slot)
			if err != nil {
				return err
			}
			h := c.Header
			fmt.Printf("slot %d\n", slot)
			fmt.Printf("  code size:    %d words\n", len(c.Code))
			fmt.Printf("  string block: %04x\n", h.StringBlock)
			fmt.Printf("  memory slots: %d\n", h.MemorySlots)
			fmt.Printf("  unknown:      %04x %04x %04x %04x\n",
				h.Unknown1, h.Unknown2, h.Unknown3, h.Unknown4)
			fmt.Printf("  imports:      %d\n", len(c.Imports))
			for _, imp := range c.Imports {
				fmt.Printf("    %-16s id=%-4d %s ret=%s\n", imp.Name, imp.ID, imp.Kind, imp.Return)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&slot, "slot", -1, "conversation slot to inspect")
	return cmd
}
