package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/travelog/travelog/internal/model"
	"github.com/travelog/travelog/internal/service"
)

func ProfileCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit profiles",
	}

	cmd.AddCommand(profileShowCmd(rt))
	cmd.AddCommand(profileEditCmd(rt))
	return cmd
}

func profileShowCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "show [user-id]",
		Short: "Show your profile, or another user's",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles := rt.App.ProfileService

			var user *model.User
			var err error
			if len(args) == 1 {
				user, err = profiles.LoadUser(cmd.Context(), args[0])
			} else {
				user, err = profiles.Load(cmd.Context())
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printOffline(out, profiles.Profile.Offline.Get())
			if user == nil {
				fmt.Fprintln(out, "No such user")
				return nil
			}
			printUser(out, user)
			return nil
		},
	}
}

func profileEditCmd(rt *Runtime) *cobra.Command {
	var update service.ProfileUpdate

	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Change your name or picture",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := rt.App.ProfileService.Update(cmd.Context(), update)
			if err != nil {
				return err
			}
			if user != nil {
				printUser(cmd.OutOrStdout(), user)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&update.Username, "username", "", "new display name")
	cmd.Flags().StringVar(&update.ImagePath, "image", "", "path to a JPEG or PNG picture")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
