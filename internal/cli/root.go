// Package cli holds the soulchat cobra commands.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"soulconnect-chat/internal/api"
	"soulconnect-chat/internal/session"

	"github.com/spf13/cobra"
)

type app struct {
	cfg    *Config
	sess   *session.Session
	client *api.Client
}

// NewRootCommand builds the soulchat command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	var configFile string

	root := &cobra.Command{
		Use:           "soulchat",
		Short:         "SoulConnect chat from the terminal",
		Long:          `Log in to SoulConnect, browse your matches and conversations, and chat in an interactive window.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default $HOME/.soulchat/config.yaml)")
	root.PersistentFlags().String("api-url", "", "backend API base URL")
	root.PersistentFlags().String("profile", "", "session profile name")
	root.PersistentFlags().Bool("debug", false, "write debug logs to stderr")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		v := newViper(configFile)
		for key, flag := range map[string]string{"api_url": "api-url", "profile": "profile", "debug": "debug"} {
			if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return err
				}
			}
		}
		cfg, err := loadConfig(v)
		if err != nil {
			return err
		}
		return a.init(cmd, cfg)
	}

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.conversationsCmd(),
		a.messagesCmd(),
		a.sendCmd(),
		a.unreadCmd(),
		a.matchesCmd(),
		a.likeCmd(),
		a.unmatchCmd(),
		a.requestsCmd(),
		a.requestCmd(),
		a.respondCmd(),
		a.chatCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command, cfg *Config) error {
	a.cfg = cfg
	if cfg.Debug {
		log.SetOutput(cmd.ErrOrStderr())
	} else {
		log.SetOutput(io.Discard)
	}

	dir, err := session.DefaultDir(cfg.Profile)
	if err != nil {
		return err
	}
	a.sess = session.New(dir)
	if err := a.sess.Init(); err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	opts := []api.Option{api.WithHTTPClient(&http.Client{Timeout: cfg.Timeout})}
	if cfg.WSURL != "" {
		opts = append(opts, api.WithWebsocketURL(cfg.WSURL))
	}
	a.client = api.New(cfg.APIURL, a.sess, opts...)

	// The chat window installs its own hooks.
	if cmd.Name() != "chat" {
		errOut := cmd.ErrOrStderr()
		a.client.SetNoticeHook(func(e *api.Error) {
			log.Printf("notice: %s", e.Message)
		})
		a.sess.OnExpired(func() {
			fmt.Fprintln(errOut, "Your session expired. Run `soulchat login` to log in again.")
		})
	}
	return nil
}

func (a *app) requireLogin() error {
	if !a.sess.LoggedIn() {
		return errors.New("not logged in, run `soulchat login` first")
	}
	return nil
}
