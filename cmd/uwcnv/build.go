package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/uwtools/uwcnv/compiler"
	"github.com/uwtools/uwcnv/manifest"
	"github.com/uwtools/uwcnv/pkg/cnv"
	"github.com/uwtools/uwcnv/session"
)

func newBuildCmd() *cobra.Command {
	log := commonlog.GetLogger("uwcnv.build")

	cmd := &cobra.Command{
		Use:   "build [dir]",
		Short: "Build every conversation in a uwcnv.toml project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			m, err := manifest.FindAndLoad(dir)
			if err != nil {
				return err
			}
			if m == nil {
				return fmt.Errorf("no uwcnv.toml found from %s", dir)
			}

			archive := cnv.NewArchive(m.Archive.Slots)
			strs := session.NewStringTable()

			for _, c := range m.Conversations {
				src, err := os.ReadFile(m.SourcePath(c))
				if err != nil {
					return err
				}
				block := c.StringBlock
				if block == 0 {
					// game convention: string block 0x0E00 + slot
					block = 0x0E00 + c.Slot
				}
				prog, err := compiler.Compile(string(src), compiler.Options{
					Slot:        c.Slot,
					StringBlock: uint16(block),
					MemorySlots: uint16(c.MemorySlots),
				})
				if err != nil {
					return fmt.Errorf("%s: %w", c.Source, err)
				}
				archive.SetSlot(c.Slot, prog.Conversation.Encode())
				strs.SetBlock(block, prog.Strings)
				log.Infof("compiled %s into slot %d (%d code words, %d strings)",
					c.Source, c.Slot, len(prog.Conversation.Code), len(prog.Strings))
			}

			if err := writeArchive(m.OutputPath(), archive, m.Archive.Compress); err != nil {
				return err
			}
			if m.Strings.Output != "" {
				if err := strs.WriteFile(filepath.Join(m.Dir, m.Strings.Output)); err != nil {
					return err
				}
			}
			fmt.Printf("built %d conversations into %s\n", len(m.Conversations), m.Archive.Output)
			return nil
		},
	}
	return cmd
}
