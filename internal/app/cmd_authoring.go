package app

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hitoshi/blogclient/internal/model"
)

// errLoginRequired は未ログインで書き込み系コマンドを実行した場合のエラー。
var errLoginRequired = errors.New("この操作にはログインが必要です")

func requireLogin(a *App) error {
	if !a.session.Current().IsAuthenticated() {
		return errLoginRequired
	}
	return nil
}

// postInputFlags は記事作成・更新のフラグ。
type postInputFlags struct {
	title   string
	content string
	tags    []string
}

func (f *postInputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "post title")
	cmd.Flags().StringVar(&f.content, "content", "", "post body (HTML)")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "tag (repeatable)")
}

func (f *postInputFlags) input() (model.PostInput, error) {
	in := model.PostInput{
		Title:   strings.TrimSpace(f.title),
		Content: f.content,
	}
	for _, t := range f.tags {
		if t = strings.TrimSpace(t); t != "" {
			in.Tags = append(in.Tags, t)
		}
	}
	if in.Title == "" || strings.TrimSpace(in.Content) == "" {
		return in, errors.New("--title and --content are required")
	}
	return in, nil
}

func newPostCreateCmd(withApp appRunner) *cobra.Command {
	var flags postInputFlags
	cmd := &cobra.Command{
		Use:   "post-create",
		Short: "Publish a new post",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *App, args []string) error {
			in, err := flags.input()
			if err != nil {
				return err
			}
			if err := requireLogin(a); err != nil {
				return err
			}
			post, err := a.api.CreatePost(cmd.Context(), in)
			if err != nil {
				return err
			}
			return writeOut(cmd, post)
		}),
	}
	flags.register(cmd)
	return cmd
}

func newPostEditCmd(withApp appRunner) *cobra.Command {
	var flags postInputFlags
	cmd := &cobra.Command{
		Use:   "post-edit <id>",
		Short: "Replace the title, body and tags of your post",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *App, args []string) error {
			postID, err := parseID(args[0])
			if err != nil {
				return err
			}
			in, err := flags.input()
			if err != nil {
				return err
			}
			if err := requireLogin(a); err != nil {
				return err
			}
			post, err := a.api.UpdatePost(cmd.Context(), postID, in)
			if err != nil {
				return err
			}
			return writeOut(cmd, post)
		}),
	}
	flags.register(cmd)
	return cmd
}

func newPostDeleteCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "post-delete <id>",
		Short: "Delete your post",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *App, args []string) error {
			postID, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := requireLogin(a); err != nil {
				return err
			}
			if err := a.api.DeletePost(cmd.Context(), postID); err != nil {
				return err
			}
			return writeOut(cmd, map[string]any{"postId": postID, "deleted": true})
		}),
	}
}

func newCommentsCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "comments <postID>",
		Short: "List the comments and replies of a post",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *App, args []string) error {
			postID, err := parseID(args[0])
			if err != nil {
				return err
			}
			comments, err := a.api.ListComments(cmd.Context(), postID)
			if err != nil {
				return err
			}
			if comments == nil {
				comments = []model.Comment{}
			}
			return writeOut(cmd, map[string]any{"postId": postID, "comments": comments})
		}),
	}
}

// newCommentCmd はコメントを投稿する。--reply-to を指定するとそのコメントへの返信になる。
func newCommentCmd(withApp appRunner) *cobra.Command {
	var content string
	var replyTo int64
	cmd := &cobra.Command{
		Use:   "comment <postID>",
		Short: "Comment on a post, or reply to a comment with --reply-to",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *App, args []string) error {
			postID, err := parseID(args[0])
			if err != nil {
				return err
			}
			if strings.TrimSpace(content) == "" {
				return errors.New("--content is required")
			}
			if err := requireLogin(a); err != nil {
				return err
			}
			if replyTo > 0 {
				reply, err := a.api.CreateReply(cmd.Context(), postID, replyTo, content)
				if err != nil {
					return err
				}
				return writeOut(cmd, reply)
			}
			comment, err := a.api.CreateComment(cmd.Context(), postID, content)
			if err != nil {
				return err
			}
			return writeOut(cmd, comment)
		}),
	}
	cmd.Flags().StringVar(&content, "content", "", "comment body")
	cmd.Flags().Int64Var(&replyTo, "reply-to", 0, "reply to this comment id")
	return cmd
}
