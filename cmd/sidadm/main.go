// Command sidadm administers a SID cache catalog file: loading and
// saving the text format of spec.md §4.H.3/§6, and running selection
// queries against it for operators diagnosing placement decisions.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dreamware/pvfsmeta/internal/sidcache"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sidadm",
		Short: "Administer a SID cache server catalog",
	}
	root.AddCommand(newLoadCmd(), newSaveCmd(), newSelectCmd(), newShowCmd())
	return root
}

func loadCatalog(path string) (*sidcache.Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return sidcache.Load(f)
}

func newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <file>",
		Short: "Parse a server-definitions file and print a summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d servers\n", cat.Len())
			return nil
		},
	}
}

func newSaveCmd() *cobra.Command {
	var only []string
	cmd := &cobra.Command{
		Use:   "save <in-file> <out-file>",
		Short: "Re-save a catalog, optionally filtered to a list of SIDs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(args[0])
			if err != nil {
				return err
			}
			out, err := os.Create(args[1])
			if err != nil {
				return err
			}
			defer out.Close()

			if len(only) == 0 {
				return sidcache.Save(out, cat)
			}
			sids := make([]sidcache.SID, 0, len(only))
			for _, text := range only {
				sid, err := sidcache.ParseSID(text)
				if err != nil {
					return fmt.Errorf("bad sid %q: %w", text, err)
				}
				sids = append(sids, sid)
			}
			return sidcache.SaveList(out, cat, sids)
		},
	}
	cmd.Flags().StringSliceVar(&only, "sid", nil, "restrict output to these SIDs (repeatable)")
	return cmd
}

func newSelectCmd() *cobra.Command {
	var wantN int
	var rackAttr string
	cmd := &cobra.Command{
		Use:   "select <file>",
		Short: "Run select_servers against a catalog and print the chosen SIDs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(args[0])
			if err != nil {
				return err
			}
			policy := sidcache.Policy{
				SetCriteria: []sidcache.SetCriterion{{CountMax: wantN, Predicate: sidcache.SetPredicate{Always: true}}},
			}
			if rackAttr != "" {
				policy.JoinCriteria = []sidcache.Predicate{{Attr: "rack", Value: rackAttr}}
			}
			sids, copies := sidcache.SelectServers(cat, policy, wantN)
			for _, sid := range sids {
				fmt.Fprintln(cmd.OutOrStdout(), sid.String())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "copies=%d\n", copies)
			return nil
		},
	}
	cmd.Flags().IntVar(&wantN, "want", 1, "number of servers to select")
	cmd.Flags().StringVar(&rackAttr, "rack", "", "require this rack attribute value")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <file>",
		Short: "Print every catalog record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cat.All())
		},
	}
}
