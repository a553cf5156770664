package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Avataren/slidekiosk/internal/config"
)

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "Manage the slideshow page list",
}

var pagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured pages",
	RunE: func(cmd *cobra.Command, args []string) error {
		configMgr, err := config.NewManager(GetConfigFile())
		if err != nil {
			return err
		}
		cfg := configMgr.Get()
		if len(cfg.Pages) == 0 {
			fmt.Println("No pages configured.")
			return nil
		}
		for i, page := range cfg.Pages {
			title := page.Title
			if title == "" {
				title = "-"
			}
			fmt.Printf("%3d  %-40s %s\n", i, page.URL, title)
		}
		return nil
	},
}

var pagesAddCmd = &cobra.Command{
	Use:   "add <url> [title]",
	Short: "Add a page to the slideshow",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		configMgr, err := config.NewManager(GetConfigFile())
		if err != nil {
			return err
		}
		title := ""
		if len(args) > 1 {
			title = args[1]
		}
		if err := configMgr.AddPage(args[0], title); err != nil {
			return err
		}
		fmt.Printf("Added %s\n", args[0])
		return nil
	},
}

var pagesRemoveCmd = &cobra.Command{
	Use:   "remove <index>",
	Short: "Remove a page by index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configMgr, err := config.NewManager(GetConfigFile())
		if err != nil {
			return err
		}
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid index %q: %w", args[0], err)
		}
		if err := configMgr.RemovePage(index); err != nil {
			return err
		}
		fmt.Printf("Removed page %d\n", index)
		return nil
	},
}

func init() {
	pagesCmd.AddCommand(pagesListCmd)
	pagesCmd.AddCommand(pagesAddCmd)
	pagesCmd.AddCommand(pagesRemoveCmd)
	rootCmd.AddCommand(pagesCmd)
}
