// SPDX-License-Identifier: AGPL-3.0-only
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/ordinary-app/app-sub001/internal/feed"
	"github.com/ordinary-app/app-sub001/internal/ledger"
	"github.com/ordinary-app/app-sub001/internal/protocol"
	"github.com/ordinary-app/app-sub001/internal/session"
	"github.com/ordinary-app/app-sub001/internal/view"
	"go.uber.org/zap"
	"golang.org/x/term"
)

type BrowseOptions struct {
	Identifier string
	Author     string
	PostID     string
	Pages      int
}

// ParseBrowseFlags reads the flags of the browse command.
func ParseBrowseFlags(args []string) (BrowseOptions, error) {
	var opts BrowseOptions
	fs := flag.NewFlagSet("browse", flag.ContinueOnError)
	fs.StringVar(&opts.Identifier, "identifier", "", "log in as this handle before browsing")
	fs.StringVar(&opts.Author, "author", "", "only show posts by this author")
	fs.StringVar(&opts.PostID, "post", "", "show the comments of this post instead of a feed")
	fs.IntVar(&opts.Pages, "pages", 1, "number of pages to load")
	if err := fs.Parse(args); err != nil {
		return BrowseOptions{}, err
	}
	if opts.Pages < 1 {
		return BrowseOptions{}, fmt.Errorf("--pages must be at least 1, got %d", opts.Pages)
	}
	if opts.PostID != "" && opts.Author != "" {
		return BrowseOptions{}, fmt.Errorf("--post and --author cannot be combined")
	}
	return opts, nil
}

func (o BrowseOptions) Subject() protocol.Subject {
	if o.PostID != "" {
		return protocol.CommentsSubject(o.PostID)
	}
	return protocol.FeedSubject(o.Author)
}

// PromptSecret reads a secret from the terminal without echoing it.
func PromptSecret(identifier string) (string, error) {
	fmt.Printf("Enter password for '%s': ", identifier)
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(secret), nil
}

type Browser struct {
	Client   protocol.Client
	Auth     protocol.Authenticator
	Store    *session.Store
	Feed     feed.Options
	Instance string
	Out      io.Writer
	Prompt   func(identifier string) (string, error)
	Now      func() time.Time
	Log      *zap.SugaredLogger
}

// Browse logs in when requested, loads the requested pages of one subject
// and prints them.
func (b *Browser) Browse(ctx context.Context, opts BrowseOptions) error {
	out := b.Out
	if out == nil {
		out = os.Stdout
	}
	now := b.Now
	if now == nil {
		now = time.Now
	}
	logger := b.Log
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	if opts.Identifier != "" {
		prompt := b.Prompt
		if prompt == nil {
			prompt = PromptSecret
		}
		secret, err := prompt(opts.Identifier)
		if err != nil {
			return err
		}
		account, err := b.Auth.Login(ctx, opts.Identifier, secret)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		if err := b.Store.Set(session.FromAccount(b.Client.Network(), account)); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		fmt.Fprintf(out, "Logged in as %s\n", account.Handle)
	}

	s, err := feed.NewSession(b.Client, opts.Subject(), b.Store, b.Feed, &ledger.Memory{}, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	state, err := s.LoadFirst(ctx)
	if err != nil {
		return err
	}
	for page := 1; page < opts.Pages && state.HasMore; page++ {
		state, err = s.LoadMore(ctx)
		if err != nil {
			return err
		}
	}

	vctx := view.Context{
		ViewerID:    session.ViewerID(b.Store),
		Network:     b.Client.Network(),
		InstanceURL: b.Instance,
		Now:         now(),
	}
	items := view.ProjectAll(s.Items(), vctx)
	for _, item := range items {
		printItem(out, item)
	}

	more := "end of feed"
	if state.HasMore {
		more = "more available"
	}
	fmt.Fprintf(out, "%d items, %s\n", len(items), more)
	return nil
}

func printItem(w io.Writer, item view.Item) {
	var flags []string
	if item.HasLikedByViewer {
		flags = append(flags, "liked")
	}
	if item.HasBookmarkedByViewer {
		flags = append(flags, "bookmarked")
	}
	if item.HasFollowedAuthorByViewer {
		flags = append(flags, "following")
	}
	if item.IsOwn {
		flags = append(flags, "own")
	}

	fmt.Fprintf(w, "%s (@%s) · %s\n", item.AuthorName, item.AuthorHandle, item.RelativeTime)
	fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(item.Content, "\n", "\n  "))
	fmt.Fprintf(w, "  ♥ %d  💬 %d  ⟳ %d  🔖 %d", item.LikeCount, item.CommentCount, item.RepostCount, item.BookmarkCount)
	if len(flags) > 0 {
		fmt.Fprintf(w, "  [%s]", strings.Join(flags, ", "))
	}
	fmt.Fprintln(w)
	if item.URL != "" {
		fmt.Fprintf(w, "  %s\n", item.URL)
	}
}
