package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/uwtools/uwcnv/pkg/cnv"
)

func newAsmCmd() *cobra.Command {
	var (
		archivePath string
		slot        int
		compress    bool
	)

	cmd := &cobra.Command{
		Use:   "asm <source.asm>",
		Short: "Assemble a source file into an archive slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			c, err := cnv.Assemble(string(src))
			if err != nil {
				return err
			}
			if slot >= 0 {
				c.Slot = slot
			}

			a, err := loadArchive(archivePath)
			if os.IsNotExist(err) {
				a = cnv.NewArchive(256)
			} else if err != nil {
				return err
			}
			a.SetSlot(c.Slot, c.Encode())
			return writeArchive(archivePath, a, compress)
		},
	}

	cmd.Flags().StringVarP(&archivePath, "archive", "a", "cnv.ark", "archive to update")
	cmd.Flags().IntVar(&slot, "slot", -1, "override the slot declared in the source")
	cmd.Flags().BoolVar(&compress, "compress", false, "write the packed archive form")
	return cmd
}
