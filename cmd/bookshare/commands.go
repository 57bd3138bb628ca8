package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bookshare/internal/feed"
	"bookshare/internal/mutation"
	"bookshare/pkg/domain"
)

func slotFor(client bool) domain.Slot {
	if client {
		return domain.SlotClient
	}
	return domain.SlotPrimary
}

func registerCmd(a *app) *cobra.Command {
	var client bool
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			slot := slotFor(client)
			if err := a.sessions.Register(cmd.Context(), slot, username, email, password); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Registered and signed in as %s (%s)\n", username, slot)
			return nil
		},
	}
	cmd.Flags().BoolVar(&client, "client", false, "use the reader identity")
	cmd.Flags().StringVar(&username, "username", "", "user name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	return cmd
}

func loginCmd(a *app) *cobra.Command {
	var client bool
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			slot := slotFor(client)
			if err := a.sessions.Login(cmd.Context(), slot, email, password); err != nil {
				return err
			}
			_, profile, _ := a.sessions.Credential(slot)
			fmt.Fprintf(a.out, "Signed in as %s (%s)\n", profile.Username, slot)
			return nil
		},
	}
	cmd.Flags().BoolVar(&client, "client", false, "use the reader identity")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	var client bool
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			slot := slotFor(client)
			if err := a.sessions.Logout(cmd.Context(), slot); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Signed out (%s)\n", slot)
			return nil
		},
	}
	cmd.Flags().BoolVar(&client, "client", false, "use the reader identity")
	return cmd
}

func whoamiCmd(a *app) *cobra.Command {
	var client bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			slot := slotFor(client)
			_, profile, ok := a.sessions.Credential(slot)
			if !ok {
				fmt.Fprintf(a.out, "Not signed in (%s)\n", slot)
				return nil
			}
			fmt.Fprintf(a.out, "%s <%s> id=%s (%s)\n", profile.Username, profile.Email, profile.ID, slot)
			return nil
		},
	}
	cmd.Flags().BoolVar(&client, "client", false, "use the reader identity")
	return cmd
}

func feedCmd(a *app) *cobra.Command {
	var owner, refresh bool
	var query string
	var pages int
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "List books page by page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := feed.Config{
				Source:     feed.PublicSource{API: a.api},
				Limit:      a.cfg.PageLimit,
				Failure:    feed.FailClosed,
				MinRefresh: a.cfg.RefreshDelay(),
				Logger:     a.logger.With("component", "feed"),
			}
			if owner {
				cfg.Source = feed.OwnerSource{API: a.api, Sessions: a.sessions}
				cfg.Failure = feed.FailOpen
			}
			p, err := feed.New(cfg)
			if err != nil {
				return err
			}

			if err := p.Search(ctx, query); err != nil {
				return err
			}
			if refresh {
				if err := p.Refresh(ctx); err != nil {
					return err
				}
			}
			for i := 1; i < pages; i++ {
				issued, err := p.LoadMore(ctx)
				if err != nil {
					return err
				}
				if !issued {
					break
				}
			}

			state := p.Snapshot()
			for _, b := range state.Items {
				fmt.Fprintf(a.out, "%s  %-32s %s  by %s\n", b.ID, b.Title, renderStars(b.AvgRating), b.User.Username)
			}
			more := ""
			if state.HasMore {
				more = ", more available"
			}
			fmt.Fprintf(a.out, "%d books, page %d%s\n", len(state.Items), state.Page, more)
			return nil
		},
	}
	cmd.Flags().BoolVar(&owner, "owner", false, "list the owner feed with the primary identity")
	cmd.Flags().StringVar(&query, "query", "", "search keyword")
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to load")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "reload the first page after loading it")
	return cmd
}

func bookCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "book <id>",
		Short: "Show a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rating := a.mutation.Rating(args[0], 0, 0)
			b, err := rating.Load(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s\n%s\n", b.Title, firstNonEmpty(b.Description, b.Caption))
			fmt.Fprintf(a.out, "Rating: %s %.1f (%d ratings)\n", renderFill(rating.Stars(mutation.MaxStars)), rating.Display(), b.RatingCount)
			if b.FileBook != "" {
				fmt.Fprintf(a.out, "File: %s\n", b.FileBook)
			}

			fav := a.mutation.Favorite(b.ID)
			if err := fav.Sync(ctx); err != nil {
				a.logger.Warn("favorite check", "book_id", b.ID, "err", err)
				return nil
			}
			if _, _, ok := a.sessions.Credential(domain.SlotClient); ok {
				fmt.Fprintf(a.out, "Favorite: %s\n", fav.State())
			}
			return nil
		},
	}
}

func favoriteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <id>",
		Short: "Toggle a book in the reader's favorites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			fav := a.mutation.Favorite(args[0])
			if err := fav.Sync(ctx); err != nil {
				return err
			}
			saved, err := fav.Toggle(ctx)
			if err != nil {
				return err
			}
			if saved {
				fmt.Fprintln(a.out, "Added to favorites")
			} else {
				fmt.Fprintln(a.out, "Removed from favorites")
			}
			return nil
		},
	}
}

func favoritesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "favorites",
		Short: "List the reader's favorite books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := a.mutation.Favorites(cmd.Context())
			if err != nil {
				return err
			}
			printBooks(a, books)
			return nil
		},
	}
}

func rateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rate <id> <1-5>",
		Short: "Rate a book as the reader",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("rating must be a number: %q", args[1])
			}
			rating := a.mutation.Rating(args[0], 0, 0)
			outcome, err := rating.Rate(cmd.Context(), value)
			switch outcome {
			case mutation.OutcomeSubmitted:
				fmt.Fprintf(a.out, "Rated %s\n", renderFill(rating.Stars(mutation.MaxStars)))
			case mutation.OutcomeCanceled:
				fmt.Fprintln(a.out, "Rating canceled")
			}
			return err
		},
	}
}

func myBooksCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mybooks",
		Short: "List the owner's books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := a.library.MyBooks(cmd.Context())
			if err != nil {
				return err
			}
			printBooks(a, books)
			return nil
		},
	}
}

func deleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one of the owner's books",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, err := a.library.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if deleted {
				fmt.Fprintln(a.out, "Delete record successfully!")
			}
			return nil
		},
	}
}

func createCmd(a *app) *cobra.Command {
	var d libraryDraft
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Post a new book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.library.Create(cmd.Context(), d.draft()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Your book has been posted!")
			return nil
		},
	}
	d.bind(cmd, false)
	return cmd
}

func editCmd(a *app) *cobra.Command {
	var d libraryDraft
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit one of the owner's books",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.library.Update(cmd.Context(), args[0], d.draft()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Book updated successfully!")
			return nil
		},
	}
	d.bind(cmd, true)
	return cmd
}

func profileCmd(a *app) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Change the owner's user name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.library.UpdateProfile(cmd.Context(), username); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Profile updated successfully!")
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "new user name")
	return cmd
}

func printBooks(a *app, books []domain.Book) {
	if len(books) == 0 {
		fmt.Fprintln(a.out, "No books yet")
		return
	}
	for _, b := range books {
		fmt.Fprintf(a.out, "%s  %-32s %s\n", b.ID, b.Title, renderStars(float64(b.Rating)))
	}
}

// renderStars draws the five-star bar used next to every book.
func renderStars(value float64) string {
	return renderFill(mutation.StarFill(value, mutation.MaxStars))
}

func renderFill(fills []float64) string {
	var sb strings.Builder
	for _, fill := range fills {
		switch {
		case fill >= 1:
			sb.WriteString("★")
		case fill <= 0:
			sb.WriteString("☆")
		default:
			sb.WriteString("⯪")
		}
	}
	return sb.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
