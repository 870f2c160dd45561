package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/travelog/travelog/internal/validation"
)

func PostCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Show, create, edit or delete a post",
	}

	cmd.AddCommand(postShowCmd(rt))
	cmd.AddCommand(postCreateCmd(rt))
	cmd.AddCommand(postEditCmd(rt))
	cmd.AddCommand(postDeleteCmd(rt))
	return cmd
}

func postShowCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "show <post-id>",
		Short: "Show a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			posts := rt.App.PostService
			post, err := posts.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printOffline(out, posts.Detail.Offline.Get())
			if post == nil {
				fmt.Fprintln(out, "No such post")
				return nil
			}
			printPost(out, post)
			if posts.IsOwner(post) {
				fmt.Fprintln(out, "\n(yours: post edit / post delete)")
			}
			return nil
		},
	}
}

func postInputFlags(cmd *cobra.Command, in *validation.PostInput, imagePath *string) {
	cmd.Flags().StringVar(&in.Title, "title", "", "title")
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	cmd.Flags().StringVar(&in.Location, "location", "", "place name")
	cmd.Flags().StringVar(imagePath, "image", "", "path to a JPEG or PNG image")
}

func postCreateCmd(rt *Runtime) *cobra.Command {
	var in validation.PostInput
	var imagePath string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a post",
		RunE: func(cmd *cobra.Command, args []string) error {
			post, err := rt.App.PostService.Create(cmd.Context(), in, imagePath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", post.PostID)
			return nil
		},
	}

	postInputFlags(cmd, &in, &imagePath)
	cmd.Flags().Float64Var(&in.Latitude, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&in.Longitude, "lng", 0, "longitude")
	return cmd
}

func postEditCmd(rt *Runtime) *cobra.Command {
	var in validation.PostInput
	var imagePath string

	cmd := &cobra.Command{
		Use:   "edit <post-id>",
		Short: "Edit one of your posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			post, err := rt.App.PostService.Update(cmd.Context(), args[0], in, imagePath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", post.PostID)
			return nil
		},
	}

	postInputFlags(cmd, &in, &imagePath)
	return cmd
}

func postDeleteCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <post-id>",
		Short: "Delete one of your posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := rt.App.PostService.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted")
			return nil
		},
	}
}
