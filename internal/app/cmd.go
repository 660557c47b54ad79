package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hitoshi/blogclient/internal/config"
	"github.com/hitoshi/blogclient/internal/database"
	"github.com/hitoshi/blogclient/internal/follow"
	"github.com/hitoshi/blogclient/internal/handler"
	"github.com/hitoshi/blogclient/internal/middleware"
	"github.com/hitoshi/blogclient/internal/model"
	"github.com/hitoshi/blogclient/internal/query"
)

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。ログはwに、コマンドの出力は標準出力に書く。
func Run(w io.Writer, args []string) error {
	return Execute(os.Stdout, w, args)
}

// Execute はサブコマンドを解析して実行する。
// 引数が空の場合はserveとして起動する。
func Execute(out, logOut io.Writer, args []string) error {
	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if len(args) > 0 && args[0] == "healthcheck" {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8090"
		}
		return runHealthcheck(port)
	}
	if len(args) == 0 {
		args = []string{"serve"}
	}

	cfg, log, err := Init(logOut)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	root := newRootCmd(cfg, log)
	root.SetOut(out)
	root.SetErr(logOut)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func newRootCmd(cfg *config.Config, log *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "blogclient",
		Short:         "Client for the blog platform backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// withApp はAppを組み立ててセッションを復元し、終了時にCookieを保存する。
	withApp := func(fn func(cmd *cobra.Command, a *App, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()
			a.Restore(ctx)
			return fn(cmd, a, args)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the local companion HTTP API",
			Args:  cobra.NoArgs,
			RunE:  withApp(runServe),
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply credential store migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(cfg, log)
			},
		},
		newLoginCmd(withApp),
		newSignupCmd(withApp),
		&cobra.Command{
			Use:   "logout",
			Short: "Log out and forget the stored session",
			Args:  cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, a *App, args []string) error {
				a.session.Logout(cmd.Context())
				return writeOut(cmd, sessionOutput(a))
			}),
		},
		newWhoamiCmd(withApp),
		newPostsCmd(cfg, withApp),
		&cobra.Command{
			Use:   "post <id>",
			Short: "Show a post with its like state",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(cmd *cobra.Command, a *App, args []string) error {
				postID, err := parseID(args[0])
				if err != nil {
					return err
				}
				view, err := a.detail.Open(cmd.Context(), postID)
				if err != nil {
					return err
				}
				return writeOut(cmd, view)
			}),
		},
		&cobra.Command{
			Use:   "like <postID>",
			Short: "Toggle the like on a post",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(cmd *cobra.Command, a *App, args []string) error {
				postID, err := parseID(args[0])
				if err != nil {
					return err
				}
				st, err := a.likes.Toggle(cmd.Context(), postID)
				if err != nil {
					return err
				}
				return writeOut(cmd, st)
			}),
		},
		&cobra.Command{
			Use:   "follow <userID>",
			Short: "Toggle following a user",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(cmd *cobra.Command, a *App, args []string) error {
				userID, err := parseID(args[0])
				if err != nil {
					return err
				}
				st, err := a.follows.Toggle(cmd.Context(), userID)
				if err != nil {
					return err
				}
				return writeOut(cmd, followOutput(userID, st))
			}),
		},
		newFollowStatusCmd(withApp),
		newPostCreateCmd(withApp),
		newPostEditCmd(withApp),
		newPostDeleteCmd(withApp),
		newCommentsCmd(withApp),
		newCommentCmd(withApp),
		&cobra.Command{
			Use:   "healthcheck",
			Short: "Check the companion server health endpoint",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runHealthcheck(cfg.ServerPort)
			},
		},
	)
	return root
}

type appRunner func(fn func(cmd *cobra.Command, a *App, args []string) error) func(*cobra.Command, []string) error

func newLoginCmd(withApp appRunner) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *App, args []string) error {
			if password == "" {
				password = os.Getenv("BLOG_PASSWORD")
			}
			if strings.TrimSpace(email) == "" || password == "" {
				return errors.New("--email and --password (or BLOG_PASSWORD) are required")
			}
			if _, err := a.session.Login(cmd.Context(), strings.TrimSpace(email), password); err != nil {
				return err
			}
			return writeOut(cmd, sessionOutput(a))
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func newSignupCmd(withApp appRunner) *cobra.Command {
	var in model.SignupRequest
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account (does not log in)",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *App, args []string) error {
			in.Email = strings.TrimSpace(in.Email)
			in.Nickname = strings.TrimSpace(in.Nickname)
			if in.Email == "" || in.Password == "" || in.Nickname == "" {
				return errors.New("--email, --password and --nickname are required")
			}
			if err := a.session.Signup(cmd.Context(), in); err != nil {
				return err
			}
			return writeOut(cmd, map[string]string{"message": "登録が完了しました。ログインしてください。"})
		}),
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "account email")
	cmd.Flags().StringVar(&in.Password, "password", "", "account password")
	cmd.Flags().StringVar(&in.Nickname, "nickname", "", "display name")
	return cmd
}

func newWhoamiCmd(withApp appRunner) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *App, args []string) error {
			if refresh && a.session.Current().IsAuthenticated() {
				if _, err := a.session.Refresh(cmd.Context()); err != nil && !model.IsAuthRejected(err) {
					return err
				}
			}
			return writeOut(cmd, sessionOutput(a))
		}),
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "re-fetch the profile from the backend")
	return cmd
}

// postsFlags は posts コマンドで検索条件を部分的に変更するフラグ。
// 指定されたものだけを、引数のクエリに対して順に適用する。
type postsFlags struct {
	sort        string
	asc         bool
	clearSearch bool
	search      string
	keyword     string
	tags        []string
	toggleTags  []string
	tagMode     string
	page        int
}

func (f *postsFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.sort, "sort", "", "sort field: CREATED_AT, UPDATED_AT, LIKE or VIEW")
	fs.BoolVar(&f.asc, "asc", false, "ascending order")
	fs.BoolVar(&f.clearSearch, "clear-search", false, "drop the keyword and search field from the query")
	fs.StringVar(&f.search, "search", "", "keyword target: TITLE, BLOG or NICKNAME")
	fs.StringVar(&f.keyword, "keyword", "", "search keyword")
	fs.StringSliceVar(&f.tags, "tag", nil, "replace the tag filter (repeatable)")
	fs.StringSliceVar(&f.toggleTags, "toggle-tag", nil, "add or remove a tag (repeatable)")
	fs.StringVar(&f.tagMode, "tag-mode", "", "tag combination: OR, AND or NAND")
	fs.IntVar(&f.page, "page", 0, "zero-based page")
}

// apply はフラグを検索条件に反映する。ページ指定は絞り込み変更によるリセットの後に効く。
func (f *postsFlags) apply(cmd *cobra.Command, s query.State) query.State {
	changed := cmd.Flags().Changed
	if changed("sort") {
		s = s.WithSort(query.SortField(strings.ToUpper(f.sort)))
	}
	if changed("asc") {
		s = s.WithAscending(f.asc)
	}
	if f.clearSearch {
		s = s.ClearSearch()
	}
	if changed("search") {
		s = s.WithSearch(query.SearchField(strings.ToUpper(f.search)))
	}
	if changed("keyword") {
		s = s.WithKeyword(f.keyword)
	}
	if changed("tag") {
		s = s.WithTags(f.tags)
	}
	for _, t := range f.toggleTags {
		s = s.ToggleTag(t)
	}
	if changed("tag-mode") {
		s = s.WithTagMode(query.TagMode(strings.ToUpper(f.tagMode)))
	}
	if changed("page") {
		s = s.WithPage(f.page)
	}
	return s
}

func newPostsCmd(cfg *config.Config, withApp appRunner) *cobra.Command {
	var blogID int64
	var flags postsFlags
	cmd := &cobra.Command{
		Use:   "posts [query]",
		Short: "List posts, e.g. posts 'sort=LIKE&tag=go' --keyword react --page 1",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *App, args []string) error {
			state := query.Default()
			if len(args) == 1 {
				state = query.Parse(args[0])
			}
			state = flags.apply(cmd, state)
			page, err := a.api.ListPosts(cmd.Context(), state.ListParams(query.ListOptions{
				Size:   cfg.PostsPageSize,
				BlogID: blogID,
			}))
			if err != nil {
				return err
			}

			items := make([]map[string]any, 0, len(page.Content))
			for _, p := range page.Content {
				items = append(items, map[string]any{
					"postId":  p.PostID,
					"title":   p.Title,
					"author":  p.Author.Nickname,
					"excerpt": a.excerpter.Excerpt(p.Content),
				})
			}
			return writeOut(cmd, map[string]any{
				"query":    state.Encode(),
				"content":  items,
				"pageInfo": page.PageInfo,
			})
		}),
	}
	cmd.Flags().Int64Var(&blogID, "blog", 0, "only posts of this blog id")
	flags.register(cmd)
	return cmd
}

func newFollowStatusCmd(withApp appRunner) *cobra.Command {
	var counts bool
	cmd := &cobra.Command{
		Use:   "follow-status <userID>",
		Short: "Show whether you follow a user",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *App, args []string) error {
			userID, err := parseID(args[0])
			if err != nil {
				return err
			}
			out := followOutput(userID, a.follows.Check(cmd.Context(), userID))
			if counts {
				c, err := a.follows.Counts(cmd.Context(), userID)
				if err != nil {
					return err
				}
				out["counts"] = c
			}
			return writeOut(cmd, out)
		}),
	}
	cmd.Flags().BoolVar(&counts, "counts", false, "also show follower/following totals")
	return cmd
}

// runServe はコンパニオンサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cmd *cobra.Command, a *App, _ []string) error {
	rl := middleware.NewRateLimiter(middleware.PerMinute(a.cfg.RateLimitGeneral), a.logger)
	defer rl.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            a.logger,
		CORSAllowedOrigin: a.cfg.CORSAllowedOrigin,
		CookieSecure:      a.cfg.CookieSecure,
		RateLimiter:       rl,
		HealthChecker:     a.db,
		Gatherer:          a.registry,
		Session:           a.session,
		Posts:             a.api,
		Detail:            a.reader,
		Likes:             a.likes,
		Follows:           a.follows,
		Directory:         a.follows,
		Excerpter:         a.excerpter,
		PostsPageSize:     a.cfg.PostsPageSize,
	})

	server := &http.Server{
		Addr:         ":" + a.cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("companion server starting",
			slog.String("addr", server.Addr),
			slog.String("backend", a.cfg.APIURL()),
			slog.String("session", a.session.Current().State.String()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down companion server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	a.logger.Info("companion server stopped gracefully")
	return nil
}

// runMigrate は資格情報ストアのマイグレーションを実行する。
func runMigrate(cfg *config.Config, log *slog.Logger) error {
	driver, err := database.ParseDriver(cfg.CredentialStoreDriver)
	if err != nil {
		return err
	}
	log.Info("running credential store migrations",
		slog.String("driver", string(driver)),
		slog.String("dsn", maskDSN(cfg.CredentialStoreDSN)),
	)
	if err := database.RunMigrations(driver, cfg.CredentialStoreDSN); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Info("credential store migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// writeOut はコマンドの結果をJSONで出力する。
func writeOut(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sessionOutput(a *App) map[string]any {
	snap := a.session.Current()
	out := map[string]any{"state": snap.State.String()}
	if snap.Profile != nil {
		out["user"] = snap.Profile
	}
	return out
}

func followOutput(userID int64, st follow.Status) map[string]any {
	return map[string]any{
		"userId":    userID,
		"status":    st.String(),
		"following": st.Following(),
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// maskDSN は接続文字列の認証情報をマスクする。SQLiteのファイルパスはそのまま返す。
func maskDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	return dsn[:scheme+3] + "***" + dsn[at:]
}
