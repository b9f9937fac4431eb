package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"greenline/backend/internal/document"
	"greenline/backend/internal/document/domain"
)

const sopLibraryPath = "/sop-library"

func docsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "List the current organization's documents",
		// Overrides the root hook. The guard covers the library route; the document service
		// checks grants and per-document overrides on every operation.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := c.ensure(cmd.Context()); err != nil {
				return err
			}
			return c.navigate(cmd, sopLibraryPath)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.Documents.LoadDocuments(cmd.Context()); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tFOLDER\tUPDATED")
			for _, d := range c.app.Documents.Documents() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Title, d.Status, d.FolderID, d.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
	cmd.AddCommand(docsFoldersCmd(c), docsShowCmd(c), docsCreateCmd(c), docsEditCmd(c),
		docsTransitionCmd(c, "publish", "Publish a document", func(s *document.Service) transition { return s.PublishDocument }),
		docsTransitionCmd(c, "archive", "Archive a document", func(s *document.Service) transition { return s.ArchiveDocument }),
		docsDeleteCmd(c), docsHistoryCmd(c), docsRevertCmd(c), docsAccessCmd(c))
	return cmd
}

func docsFoldersCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folders",
		Short: "Show the folder tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.Documents.LoadFolders(cmd.Context()); err != nil {
				return err
			}
			printTree(cmd.OutOrStdout(), c.app.Documents.FolderTree(), 0)
			return nil
		},
	}
	var parent, desc string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := c.app.Documents.CreateFolder(cmd.Context(), document.NewFolder{Name: args[0], Description: desc, ParentID: parent})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created folder %s (%s)\n", f.Name, f.ID)
			return nil
		},
	}
	create.Flags().StringVar(&parent, "parent", "", "parent folder id")
	create.Flags().StringVar(&desc, "description", "", "folder description")

	var name, moveTo string
	update := &cobra.Command{
		Use:   "update <folder-id>",
		Short: "Rename or move a folder; --parent \"\" moves it to the top",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var u domain.FolderUpdate
			if cmd.Flags().Changed("name") {
				u.Name = &name
			}
			if cmd.Flags().Changed("parent") {
				u.ParentID = &moveTo
			}
			f, err := c.app.Documents.UpdateFolder(cmd.Context(), args[0], u)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated folder %s (%s)\n", f.Name, f.ID)
			return nil
		},
	}
	update.Flags().StringVar(&name, "name", "", "new name")
	update.Flags().StringVar(&moveTo, "parent", "", "new parent folder id")

	remove := &cobra.Command{
		Use:   "delete <folder-id>",
		Short: "Delete an empty folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Documents.DeleteFolder(cmd.Context(), args[0])
		},
	}
	cmd.AddCommand(create, update, remove)
	return cmd
}

func printTree(w io.Writer, nodes []*domain.FolderNode, depth int) {
	for _, n := range nodes {
		fmt.Fprintf(w, "%s%s  (%s)\n", strings.Repeat("  ", depth), n.Name, n.ID)
		printTree(w, n.Children, depth+1)
	}
}

func docsShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <document-id>",
		Short: "Show a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.app.Documents.LoadDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			version := 0
			if vs := c.app.Documents.Versions(); len(vs) > 0 {
				version = vs[0].VersionNumber
			}
			fmt.Fprintf(out, "%s  %s  v%d\n\n%s\n", d.Title, d.Status, version, d.Content)
			return nil
		},
	}
}

func docsCreateCmd(c *cli) *cobra.Command {
	var in document.NewDocument
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a draft document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Title = args[0]
			d, err := c.app.Documents.CreateDocument(cmd.Context(), in)
			if d != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", d.Title, d.ID)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&in.FolderID, "folder", "", "folder id")
	cmd.Flags().StringVar(&in.Content, "content", "", "document text")
	return cmd
}

func docsEditCmd(c *cli) *cobra.Command {
	var title, content, folder string
	cmd := &cobra.Command{
		Use:   "edit <document-id>",
		Short: "Change a document's title, text or folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var u domain.DocumentUpdate
			flags := cmd.Flags()
			if flags.Changed("title") {
				u.Title = &title
			}
			if flags.Changed("content") {
				u.Content = &content
			}
			if flags.Changed("folder") {
				u.FolderID = &folder
			}
			d, err := c.app.Documents.UpdateDocument(cmd.Context(), args[0], u)
			if d != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "updated %s (%s)\n", d.Title, d.Status)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&content, "content", "", "new text")
	cmd.Flags().StringVar(&folder, "folder", "", "folder id; empty moves the document to the top")
	return cmd
}

type transition func(ctx context.Context, id string) (*domain.Document, error)

func docsTransitionCmd(c *cli, use, short string, pick func(*document.Service) transition) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <document-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := pick(c.app.Documents)(cmd.Context(), args[0])
			if d != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is %s\n", d.Title, d.Status)
			}
			return err
		},
	}
}

func docsDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a document with its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Documents.DeleteDocument(cmd.Context(), args[0])
		},
	}
}

func docsHistoryCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "history <document-id>",
		Short: "List a document's versions and activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			versions, err := c.app.Documents.LoadVersions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			activity, err := c.app.Documents.LoadActivity(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tTITLE\tSTATUS\tBY\tAT")
			for _, v := range versions {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", v.VersionNumber, v.Title, v.Status, v.CreatedBy, v.CreatedAt.Format("2006-01-02 15:04"))
			}
			fmt.Fprintln(w, "\nACTION\tBY\tAT\tCHANGES")
			for _, a := range activity {
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", a.Action, a.UserID, a.CreatedAt.Format("2006-01-02 15:04"), a.Changes)
			}
			return w.Flush()
		},
	}
}

func docsRevertCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "revert <document-id> <version>",
		Short: "Restore a document to an earlier version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[1])
			}
			d, err := c.app.Documents.RevertToVersion(cmd.Context(), args[0], n)
			if d != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "reverted %s to version %d\n", d.Title, n)
			}
			return err
		},
	}
}

func docsAccessCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access <document-id>",
		Short: "List a document's per-user access overrides",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := c.app.Documents.DocumentPermissions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "USER\tACCESS")
			for _, o := range overrides {
				fmt.Fprintf(w, "%s\t%s\n", o.UserID, o.Access)
			}
			return w.Flush()
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <document-id> [<user-id>=none|view|edit ...]",
		Short: "Replace a document's overrides; with none listed they are cleared",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var overrides []domain.Override
			for _, arg := range args[1:] {
				user, access, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("invalid override %q; use <user-id>=none|view|edit", arg)
				}
				overrides = append(overrides, domain.Override{UserID: user, Access: domain.Access(access)})
			}
			if err := c.app.Documents.SetDocumentPermissions(cmd.Context(), args[0], overrides); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d overrides set\n", len(overrides))
			return nil
		},
	})
	return cmd
}
