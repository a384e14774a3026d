package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kevoctl/lib/configutil"
	"kevoctl/lib/osutil"
	"kevoctl/lib/restyutil"
	"kevoctl/lib/scrapers/kevo"
	"kevoctl/lib/telemetry"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "kevoctl",
	Short: "kevoctl controls Kwikset Kevo locks through the mykevo.com portal.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
		if verbose {
			kevo.SetRestyInstrumentOutput(
				restyutil.NewFilesystemOutput(".dev/resty/kevo"),
			)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false,
		"enable debug logging and HTTP message dumps",
	)
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type Config struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// defaults to the production portal when empty
	BaseUrl string `json:"base_url"`
}

func createClient(ctx context.Context) *kevo.Client {
	config, err := configutil.ReadRecursively[Config]("kevo.json5")
	if err != nil {
		osutil.Fatal("read kevo.json5", err)
	}

	client, err := kevo.NewClient(ctx, kevo.ClientOptions{
		BaseUrl:  config.BaseUrl,
		Username: config.Username,
		Password: config.Password,
	})
	if err != nil {
		osutil.Fatal("failed to initialize kevo client", err)
	}
	return client
}
