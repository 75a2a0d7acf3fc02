package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/uwtools/uwcnv/session"
	"github.com/uwtools/uwcnv/store"
)

func newRunCmd() *cobra.Command {
	var (
		slot        int
		stringsPath string
		savePath    string
		female      bool
	)

	cmd := &cobra.Command{
		Use:   "run <archive>",
		Short: "Run a conversation interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadArchive(args[0])
			if err != nil {
				return err
			}
			conv, err := a.DecodeSlot(slot)
			if err != nil {
				return err
			}

			strs := session.NewStringTable()
			if stringsPath != "" {
				strs, err = session.LoadStringsFile(stringsPath)
				if err != nil {
					return err
				}
			}

			cfg := session.Config{
				Strings:      strs,
				Quests:       session.NewMapQuestStore(),
				PlayerFemale: female,
			}

			var db *store.GlobalStore
			if savePath != "" {
				db, err = store.Open(savePath)
				if err != nil {
					return err
				}
				defer db.Close()

				quests := session.NewMapQuestStore()
				quests.Flags, err = db.LoadQuests()
				if err != nil {
					return err
				}
				cfg.Quests = quests
				cfg.Private, err = db.LoadSlot(slot)
				if err != nil {
					return err
				}
			}

			sess := session.New(conv, cfg)
			turn, err := sess.Start()
			if err != nil {
				return err
			}

			in := bufio.NewScanner(os.Stdin)
			for {
				for _, line := range turn.Says {
					fmt.Println(line)
				}
				if turn.Done {
					break
				}

				switch {
				case len(turn.Choices) > 0:
					for _, c := range turn.Choices {
						fmt.Printf("  %d) %s\n", c.Position, c.Text)
					}
					choice := -1
					for choice < 0 {
						fmt.Print("> ")
						if !in.Scan() {
							return in.Err()
						}
						n, err := strconv.Atoi(strings.TrimSpace(in.Text()))
						if err != nil {
							continue
						}
						for _, c := range turn.Choices {
							if c.Position == n {
								choice = n
								break
							}
						}
					}
					turn, err = sess.Choose(choice)
				case turn.NeedText:
					fmt.Print("> ")
					if !in.Scan() {
						return in.Err()
					}
					turn, err = sess.Answer(strings.TrimSpace(in.Text()))
				default:
					return fmt.Errorf("conversation suspended without requesting input")
				}
				if err != nil {
					return err
				}
			}

			if db != nil {
				if err := db.SaveSlot(slot, sess.PrivateGlobals()); err != nil {
					return err
				}
				if quests, ok := cfg.Quests.(*session.MapQuestStore); ok {
					if err := db.SaveQuests(quests.Flags); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&slot, "slot", 0, "conversation slot to run")
	cmd.Flags().StringVar(&stringsPath, "strings", "", "string file with the conversation's text")
	cmd.Flags().StringVar(&savePath, "save", "", "SQLite save database for globals and quests")
	cmd.Flags().BoolVar(&female, "female", false, "player character is female")
	return cmd
}
