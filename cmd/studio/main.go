package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"genstudio/internal/client"
	apperrors "genstudio/internal/errors"
	"genstudio/internal/model"
)

var (
	app    = kingpin.New("studio", "Command line client for the generation studio API.")
	server = app.Flag("server", "API base URL.").Default("http://localhost:4000").Envar("STUDIO_SERVER").String()
	token  = app.Flag("token", "Bearer token from signup or login.").Envar("STUDIO_TOKEN").String()

	signupCmd      = app.Command("signup", "Create an account and print its token.")
	signupEmail    = signupCmd.Flag("email", "Account email.").Required().String()
	signupPassword = signupCmd.Flag("password", "Account password (8-72 characters).").Required().String()

	loginCmd      = app.Command("login", "Log in and print a token.")
	loginEmail    = loginCmd.Flag("email", "Account email.").Required().String()
	loginPassword = loginCmd.Flag("password", "Account password.").Required().String()

	logoutCmd = app.Command("logout", "Revoke the current token.")

	generateCmd     = app.Command("generate", "Submit a generation, retrying while the model is overloaded.")
	generatePrompt  = generateCmd.Flag("prompt", "Prompt text (3-300 characters).").Required().String()
	generateStyle   = generateCmd.Flag("style", "Style (1-40 characters).").Required().String()
	generateImage   = generateCmd.Flag("image", "Optional source image.").ExistingFile()
	generateRetries = generateCmd.Flag("max-attempts", "Attempts before giving up on overload.").Default("3").Int()
	generateDelay   = generateCmd.Flag("retry-delay", "Base delay between attempts.").Default("500ms").Duration()

	listCmd = app.Command("list", "Show your most recent generations.")
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client.New(*server, client.WithToken(*token))

	var err error
	switch command {
	case signupCmd.FullCommand():
		err = runAuth(ctx, os.Stdout, api.Signup, *signupEmail, *signupPassword)
	case loginCmd.FullCommand():
		err = runAuth(ctx, os.Stdout, api.Login, *loginEmail, *loginPassword)
	case logoutCmd.FullCommand():
		err = api.Logout(ctx)
		if err == nil {
			fmt.Fprintln(os.Stdout, "Logged out.")
		}
	case generateCmd.FullCommand():
		err = runGenerate(ctx, os.Stdout, api, generateOptions{
			prompt:      *generatePrompt,
			style:       *generateStyle,
			image:       *generateImage,
			maxAttempts: *generateRetries,
			retryDelay:  *generateDelay,
		})
	case listCmd.FullCommand():
		err = runList(ctx, os.Stdout, api)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(1)
	}
}

type authFunc func(ctx context.Context, email, password string) (*client.AuthResponse, error)

func runAuth(ctx context.Context, out io.Writer, fn authFunc, email, password string) error {
	resp, err := fn(ctx, email, password)
	if err != nil {
		return err
	}
	if resp.User != nil {
		fmt.Fprintf(out, "Signed in as %s\n", resp.User.Email)
	}
	fmt.Fprintf(out, "export STUDIO_TOKEN=%s\n", resp.Token)
	return nil
}

type generateOptions struct {
	prompt      string
	style       string
	image       string
	maxAttempts int
	retryDelay  time.Duration
}

func runGenerate(ctx context.Context, out io.Writer, api *client.Client, opts generateOptions) error {
	req := client.GenerationRequest{Prompt: opts.prompt, Style: opts.style}
	if opts.image != "" {
		data, err := os.ReadFile(opts.image)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		req.Image = data
		req.ImageName = filepath.Base(opts.image)
	}

	ctrl := client.NewController(api.CreateGeneration,
		client.WithMaxAttempts(opts.maxAttempts),
		client.WithRetryDelay(opts.retryDelay),
		client.WithAttemptObserver(func(attempt, maxAttempts int) {
			if attempt > 1 {
				fmt.Fprintf(out, "Retry attempt %d of %d, the service is rate limiting, please hold on...\n", attempt, maxAttempts)
			}
		}),
	)

	stopCancel := context.AfterFunc(ctx, ctrl.Cancel)
	defer stopCancel()

	res, err := ctrl.Generate(ctx, req)
	if err != nil {
		return err
	}
	printGenerations(out, []model.GenerationResult{*res})
	return nil
}

func runList(ctx context.Context, out io.Writer, api *client.Client) error {
	gens, err := api.ListGenerations(ctx)
	if err != nil {
		return err
	}
	if len(gens) == 0 {
		fmt.Fprintln(out, "No generations yet.")
		return nil
	}
	printGenerations(out, gens)
	return nil
}

func printGenerations(out io.Writer, gens []model.GenerationResult) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tSTYLE\tSTATUS\tIMAGE\tPROMPT")
	for _, g := range gens {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", g.CreatedAt.Local().Format(time.DateTime), g.Style, g.Status, g.ImageURL, g.Prompt)
	}
	_ = w.Flush()
}

// describeError renders err as the banner shown to the user.
func describeError(err error) string {
	if errors.Is(err, client.ErrRetryLimitReached) {
		return "Retry limit reached because of rate limiting. Please wait a moment before trying again."
	}
	if errors.Is(err, context.Canceled) {
		return "Cancelled."
	}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		msg := appErr.Message
		for _, f := range appErr.Fields {
			msg += "\n  " + f.Field + ": " + f.Message
		}
		return msg
	}
	return err.Error()
}
