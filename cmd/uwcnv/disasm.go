package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/uwtools/uwcnv/pkg/cnv"
)

func newDisasmCmd() *cobra.Command {
	var (
		slot     int
		output   string
		metaPath string
	)

	cmd := &cobra.Command{
		Use:   "disasm <archive>",
		Short: "Disassemble a conversation slot to assembly text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadArchive(args[0])
			if err != nil {
				return err
			}
			c, err := a.DecodeSlot(slot)
			if err != nil {
				return err
			}

			text, err := cnv.Disassemble(c)
			if err != nil {
				return err
			}

			if metaPath != "" {
				meta, err := cnv.NewMetadata(c)
				if err != nil {
					return err
				}
				data, err := cnv.MarshalMetadata(meta)
				if err != nil {
					return err
				}
				if err := os.WriteFile(metaPath, data, 0644); err != nil {
					return err
				}
			}

			if output == "" {
				fmt.Print(text)
				return nil
			}
			return os.WriteFile(output, []byte(text), 0644)
		},
	}

	cmd.Flags().IntVar(&slot, "slot", 0, "conversation slot to disassemble")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write assembly to file instead of stdout")
	cmd.Flags().StringVar(&metaPath, "meta", "", "also write a metadata sidecar to this path")
	return cmd
}
