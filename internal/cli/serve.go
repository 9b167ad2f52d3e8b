package cli

import (
	"fmt"

	"github.com/amsen20/reconf/internal/config"
	"github.com/amsen20/reconf/internal/connector"
	"github.com/amsen20/reconf/internal/gui"
	"github.com/amsen20/reconf/internal/scheduler"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func newConnector(cfg config.GeneralConfig, kubeconfig string) (connector.Connector, error) {
	switch cfg.ConnectorKind {
	case "file":
		if cfg.InstancePath == "" {
			return nil, fmt.Errorf("the file connector needs an instance")
		}
		return connector.NewFileConnector(cfg.InstancePath)
	case "kubernetes":
		return connector.NewKubeConnector(kubeconfig, cfg)
	}
	return nil, fmt.Errorf("connector kind %q is not recognized", cfg.ConnectorKind)
}

func newServeCommand(v *viper.Viper) *cobra.Command {
	var kubeconfig string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler loop and the HTTP API",
		Long: `Periodically snapshot the data-center through a connector, solve and execute
the plan, while serving the HTTP API (POST /solve, GET /plans/:id,
GET /statistics, GET /state, GET /metrics).

Example:
  reconf serve --connector kubernetes --kubeconfig ~/.kube/config --period 30000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, cmd)
			if err != nil {
				return err
			}
			conn, err := newConnector(cfg, kubeconfig)
			if err != nil {
				log.Err(err).Msg("could not init the connector")
				return err
			}
			sched, err := scheduler.New(conn, cfg)
			if err != nil {
				log.Err(err).Msg("could not initiate scheduler")
				return err
			}
			server := gui.NewServer(sched.Params, conn)

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return sched.Run(gctx)
			})
			g.Go(func() error {
				return server.Run(gctx, cfg.Listen)
			})
			return g.Wait()
		},
	}

	cmd.Flags().String("connector", "", "Connector kind: file or kubernetes")
	cmd.Flags().String("instance", "", "Instance file of the file connector")
	cmd.Flags().String("namespace", "", "Namespace watched by the kubernetes connector")
	cmd.Flags().String("listen", "", "Address of the HTTP API")
	cmd.Flags().Int("period", 0, "Milliseconds between two rounds")
	cmd.Flags().StringVar(&kubeconfig, "kubeconfig", "", "Kubeconfig path, in-cluster config when empty")
	return cmd
}
