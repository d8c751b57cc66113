package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type configView struct {
	Store        string `json:"store"`
	DataDir      string `json:"data_dir"`
	APIBaseURL   string `json:"api_base_url"`
	Found        bool   `json:"found"`
	Token        string `json:"token,omitempty"`
	CollectionID string `json:"db_id,omitempty"`
	Tags         string `json:"tags,omitempty"`
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the cached credentials",
	}
	var asJSON bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the last used token, database ID and tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache(cfg)
			if err != nil {
				return err
			}
			stored, found := cache.Load()
			view := configView{
				Store:        cfg.ConfigStore,
				DataDir:      cfg.DataDir,
				APIBaseURL:   cfg.APIBaseURL,
				Found:        found,
				Token:        stored.MaskedToken(),
				CollectionID: stored.CollectionID,
				Tags:         stored.Tags,
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, view)
			}
			fmt.Fprintf(out, "store:    %s (%s)\n", view.Store, view.DataDir)
			fmt.Fprintf(out, "api:      %s\n", view.APIBaseURL)
			if !found {
				fmt.Fprintln(out, mutedStyle.Render("no credentials cached yet"))
				return nil
			}
			fmt.Fprintf(out, "token:    %s\n", view.Token)
			fmt.Fprintf(out, "database: %s\n", view.CollectionID)
			fmt.Fprintf(out, "tags:     %s\n", view.Tags)
			return nil
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	cmd.AddCommand(show)
	return cmd
}
