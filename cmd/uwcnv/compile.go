package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/uwtools/uwcnv/compiler"
	"github.com/uwtools/uwcnv/pkg/cnv"
	"github.com/uwtools/uwcnv/session"
)

func newCompileCmd() *cobra.Command {
	var (
		slot        int
		stringBlock int
		memorySlots int
		asmOnly     bool
		archivePath string
		stringsPath string
		compress    bool
	)

	cmd := &cobra.Command{
		Use:   "compile <source.uws>",
		Short: "Compile a script into an archive slot and string block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			prog, err := compiler.Compile(string(src), compiler.Options{
				Slot:        slot,
				StringBlock: uint16(stringBlock),
				MemorySlots: uint16(memorySlots),
			})
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			if asmOnly {
				fmt.Print(prog.Assembly)
				return nil
			}

			a, err := loadArchive(archivePath)
			if os.IsNotExist(err) {
				a = cnv.NewArchive(256)
			} else if err != nil {
				return err
			}
			a.SetSlot(slot, prog.Conversation.Encode())
			if err := writeArchive(archivePath, a, compress); err != nil {
				return err
			}

			strs, err := session.LoadStringsFile(stringsPath)
			if os.IsNotExist(err) {
				strs = session.NewStringTable()
			} else if err != nil {
				return err
			}
			strs.SetBlock(stringBlock, prog.Strings)
			return strs.WriteFile(stringsPath)
		},
	}

	cmd.Flags().IntVar(&slot, "slot", 0, "archive slot to write")
	cmd.Flags().IntVar(&stringBlock, "block", 1, "string block for the script's text")
	cmd.Flags().IntVar(&memorySlots, "memory-slots", 0, "private global cells to reserve")
	cmd.Flags().BoolVarP(&asmOnly, "asm", "S", false, "print generated assembly and stop")
	cmd.Flags().StringVarP(&archivePath, "archive", "a", "cnv.ark", "archive to update")
	cmd.Flags().StringVar(&stringsPath, "strings", "strings.txt", "string file to update")
	cmd.Flags().BoolVar(&compress, "compress", false, "write the packed archive form")
	return cmd
}
