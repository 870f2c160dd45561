package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/travelog/travelog/internal/media"
	"github.com/travelog/travelog/internal/model"
)

const offlineMarker = "(offline)"

func printOffline(w io.Writer, offline bool) {
	if offline {
		fmt.Fprintln(w, offlineMarker)
	}
}

func printUser(w io.Writer, user *model.User) {
	fmt.Fprintf(w, "%s <%s>\n", user.Username, user.Email)
	fmt.Fprintf(w, "  id:      %s\n", user.UserID)
	fmt.Fprintf(w, "  joined:  %s\n", user.CreatedAt.Format(time.DateOnly))
	if user.ProfileImageURL != "" {
		fmt.Fprintf(w, "  picture: %s\n", describeImage(user.ProfileImageURL))
	}
}

func printPostLine(w io.Writer, post *model.Post) {
	fmt.Fprintf(w, "%s  %s  %q by %s", post.CreatedAt.Format(time.DateTime), post.PostID, post.Title, post.Username)
	if post.Location != "" {
		fmt.Fprintf(w, " @ %s", post.Location)
	}
	fmt.Fprintln(w)
}

func printPost(w io.Writer, post *model.Post) {
	fmt.Fprintf(w, "%s\n", post.Title)
	fmt.Fprintf(w, "  by %s on %s\n", post.Username, post.CreatedAt.Format(time.DateTime))
	if post.UpdatedAt.After(post.CreatedAt) {
		fmt.Fprintf(w, "  edited %s\n", post.UpdatedAt.Format(time.DateTime))
	}
	if post.Location != "" {
		fmt.Fprintf(w, "  at %s\n", post.Location)
	}
	if post.HasLocation() {
		fmt.Fprintf(w, "  coordinates %.5f, %.5f\n", post.Latitude, post.Longitude)
	}
	if post.HasImage() {
		fmt.Fprintf(w, "  image %s\n", describeImage(post.ImageURI))
	}
	fmt.Fprintf(w, "\n%s\n", post.Description)
}

func describeImage(ref string) string {
	if media.IsURL(ref) {
		return ref
	}
	return fmt.Sprintf("inline, %d bytes encoded", len(ref))
}
