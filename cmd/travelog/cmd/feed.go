package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/travelog/travelog/internal/model"
)

func FeedCmd(rt *Runtime) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show the latest posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			feed := rt.App.FeedService
			out := cmd.OutOrStdout()

			if !watch {
				posts, err := feed.Refresh(cmd.Context())
				if err != nil {
					return err
				}
				printFeed(out, posts, feed.Feed.Offline.Get())
				return nil
			}

			_, err := feed.Load(cmd.Context())
			if err != nil {
				return err
			}

			updates, cancel := feed.Feed.Value.Subscribe()
			defer cancel()

			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case posts, ok := <-updates:
					if !ok {
						return nil
					}
					fmt.Fprintln(out, "--")
					printFeed(out, posts, feed.Feed.Offline.Get())
				}
			}
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "keep printing the feed as it changes")
	return cmd
}

func PostsCmd(rt *Runtime) *cobra.Command {
	var userID string
	var follow bool

	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List one author's posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				current, ok := rt.App.Session.UserID()
				if !ok {
					return errors.New("pass --user or sign in")
				}
				userID = current
			}

			feed := rt.App.FeedService
			if follow {
				return followCached(cmd, feed.Cached(cmd.Context(), userID))
			}

			posts, err := feed.LoadUser(cmd.Context(), userID)
			if err != nil {
				return err
			}
			printFeed(cmd.OutOrStdout(), posts, feed.UserPosts.Offline.Get())
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "author id (default: you)")
	cmd.Flags().BoolVar(&follow, "cached", false, "follow the local cache instead of asking the server")
	return cmd
}

func MapCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "map",
		Short: "List posts that carry coordinates",
		RunE: func(cmd *cobra.Command, args []string) error {
			feed := rt.App.FeedService
			_, err := feed.Refresh(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printOffline(out, feed.Feed.Offline.Get())
			for _, post := range feed.Mapped() {
				fmt.Fprintf(out, "%10.5f %11.5f  %s  %s\n", post.Latitude, post.Longitude, post.PostID, post.Title)
			}
			return nil
		},
	}
}

// followCached prints every delivery of a local cache query until interrupted.
func followCached(cmd *cobra.Command, updates <-chan []*model.Post) error {
	out := cmd.OutOrStdout()
	for posts := range updates {
		fmt.Fprintln(out, "--")
		printFeed(out, posts, false)
	}
	return nil
}

func printFeed(w io.Writer, posts []*model.Post, offline bool) {
	printOffline(w, offline)
	if len(posts) == 0 {
		fmt.Fprintln(w, "No posts yet")
		return
	}
	for _, post := range posts {
		printPostLine(w, post)
	}
}
