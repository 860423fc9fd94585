package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/dvcrn/modelgate-admin-client/internal/auth"
	"github.com/dvcrn/modelgate-admin-client/internal/config"
	"github.com/dvcrn/modelgate-admin-client/internal/logger"
	"github.com/dvcrn/modelgate-admin-client/internal/rpc"
	"github.com/dvcrn/modelgate-admin-client/internal/server"
)

// Version is set at build time.
var Version = "dev"

var cli CLI

func main() {
	kctx := kong.Parse(
		&cli,
		kong.UsageOnError(),
		kong.Configuration(config.TOML),
		kong.Name("modelgate-admin"),
		kong.Description("Command line client for the modelgate admin API"),
	)

	log := logger.Get()
	if cli.Debug {
		logger.SetLevel(zerolog.DebugLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, kctx.Command()); err != nil {
		log.Debug().Err(err).Msg("Command failed")
		kctx.FatalIfErrorf(err)
	}
}

func run(ctx context.Context, command string) error {
	if command == "version" {
		fmt.Println(Version)
		return nil
	}

	if err := cli.CheckAndSetDefaults(); err != nil {
		return err
	}
	session, err := cli.OpenSession()
	if err != nil {
		return err
	}
	client, err := rpc.NewClient(cli.RPC(), session)
	if err != nil {
		return err
	}

	switch command {
	case "login <username>":
		return login(ctx, client, os.Stdin)
	case "logout":
		if err := client.Logout(); err != nil {
			return err
		}
		fmt.Println("Logged out")
		return nil
	case "whoami":
		return whoami(ctx, client)
	case "refresh":
		if err := client.Refresh(ctx); err != nil {
			if errors.Is(err, auth.ErrNoRefreshToken) {
				return errors.New("not logged in")
			}
			return err
		}
		fmt.Println("Tokens refreshed")
		return nil
	case "status":
		creds := session.Credential()
		fmt.Printf("store:          %s\n", session.Name())
		fmt.Printf("access token:   %s\n", present(creds.AccessToken))
		fmt.Printf("refresh token:  %s\n", present(creds.RefreshToken))
		return nil
	case "serve":
		return server.NewServer(client, cli.Serve.AdminKey).Start(cli.Serve.Addr)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func login(ctx context.Context, client *rpc.Client, stdin io.Reader) error {
	password := cli.Login.Password
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	err := client.Login(ctx, &rpc.LoginRequest{
		Username:   cli.Login.Username,
		Password:   password,
		RememberMe: cli.Login.RememberMe,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s\n", cli.Login.Username)
	return nil
}

func whoami(ctx context.Context, client *rpc.Client) error {
	user, err := client.Auth.GetUserInfo(ctx)
	if err != nil {
		if rpc.IsUnauthenticated(err) {
			return fmt.Errorf("not logged in: %w", err)
		}
		return err
	}

	name := user.Username
	if user.Nickname != "" {
		name = fmt.Sprintf("%s (%s)", user.Username, user.Nickname)
	}
	fmt.Printf("user:         %s\n", name)
	fmt.Printf("id:           %d\n", user.ID)
	fmt.Printf("super admin:  %t\n", user.IsSuperAdmin)
	if len(user.Buttons) > 0 {
		fmt.Printf("permissions:  %s\n", strings.Join(user.Buttons, ", "))
	}
	return nil
}

func present(token string) string {
	if token == "" {
		return "missing"
	}
	return "present"
}
