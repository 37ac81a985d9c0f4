package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/helixbot/helix-poller/internal/knowledge"
	"github.com/helixbot/helix-poller/internal/models"
	"github.com/helixbot/helix-poller/internal/storage"
	"github.com/spf13/cobra"
)

// categoriesPath holds the category names maintained in the dashboard.
const categoriesPath = "categories"

func newKnowledgeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Inspect and edit the AI knowledge base",
	}
	cmd.AddCommand(newKnowledgeListCmd(a))
	cmd.AddCommand(newKnowledgeAddCmd(a))
	cmd.AddCommand(newKnowledgeRemoveCmd(a))
	cmd.AddCommand(newKnowledgeLintCmd(a))
	return cmd
}

func newKnowledgeListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List knowledge entries in stored order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := knowledge.Load(cmd.Context(), store)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCATEGORY\tTITLE\tKEYWORDS")
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.ID, it.Category, it.Title, strings.Join(it.Triggers, ", "))
			}
			return tw.Flush()
		},
	}
}

func newKnowledgeAddCmd(a *app) *cobra.Command {
	var (
		item    models.KnowledgeItem
		buttons []string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a knowledge entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, raw := range buttons {
				text, url, ok := strings.Cut(raw, "=")
				if !ok || strings.TrimSpace(text) == "" || strings.TrimSpace(url) == "" {
					return fmt.Errorf("button %q must look like text=url", raw)
				}
				item.Buttons = append(item.Buttons, models.Button{Text: strings.TrimSpace(text), URL: strings.TrimSpace(url)})
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := knowledge.Load(cmd.Context(), store)
			if err != nil {
				return err
			}
			items, added, err := knowledge.Add(items, item)
			if err != nil {
				return err
			}
			if err := knowledge.Save(cmd.Context(), store, items); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", added.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&item.ID, "id", "", "Entry id (generated when empty).")
	cmd.Flags().StringVar(&item.Category, "category", "", "Category name.")
	cmd.Flags().StringVar(&item.Title, "title", "", "Entry title.")
	cmd.Flags().StringVar(&item.Response, "response", "", "Answer text the AI grounds on.")
	cmd.Flags().StringVar(&item.Media, "media", "", "Optional media URL or file id.")
	cmd.Flags().StringSliceVar(&item.Triggers, "keyword", nil, "Trigger keyword (repeatable).")
	cmd.Flags().StringArrayVar(&buttons, "button", nil, "Inline button as text=url (repeatable).")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("response")
	return cmd
}

func newKnowledgeRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a knowledge entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := knowledge.Load(cmd.Context(), store)
			if err != nil {
				return err
			}
			items, err = knowledge.Remove(items, args[0])
			if err != nil {
				return err
			}
			if err := knowledge.Save(cmd.Context(), store, items); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

func newKnowledgeLintCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Report duplicate ids and entries with unknown categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := knowledge.Load(cmd.Context(), store)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			problems := 0
			if err := knowledge.Validate(items); err != nil {
				fmt.Fprintln(out, err)
				problems++
			}

			categories, err := loadCategories(cmd.Context(), store)
			if err != nil {
				return err
			}
			for _, it := range knowledge.UnknownCategories(items, categories) {
				fmt.Fprintf(out, "%s (%s): unknown category %q\n", it.ID, it.Title, it.Category)
				problems++
			}
			if problems > 0 {
				return fmt.Errorf("%d problem(s) found", problems)
			}
			fmt.Fprintf(out, "%d entries OK\n", len(items))
			return nil
		},
	}
}

func loadCategories(ctx context.Context, store storage.Storage) ([]string, error) {
	var categories []string
	err := store.Get(ctx, categoriesPath, &categories)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	return categories, nil
}
