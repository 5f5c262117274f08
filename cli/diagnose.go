package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"go.mdsemu.io/redirector/config"
	"go.mdsemu.io/redirector/pkg/agent/hooks/structs"
	"go.mdsemu.io/redirector/pkg/engine"
	"go.mdsemu.io/redirector/pkg/models"
	"go.mdsemu.io/redirector/utils"
	"go.uber.org/zap"
)

func init() {
	Register("diagnose", Diagnose)
}

type diagnoseCase struct {
	name    string
	attempt models.ConnectAttempt
	want    models.VerdictKind
}

func diagnoseCases(mode models.Mode, emulatorPID uint32) []diagnoseCase {
	metadataFromOther := models.ConnectAttempt{
		Family:    models.FamilyIPv4,
		Protocol:  models.ProtocolTCP,
		DestIP:    models.MetadataIP,
		DestPort:  models.MetadataPort,
		CallerPID: emulatorPID + 1,
	}

	cases := []diagnoseCase{
		{
			name: "udp traffic passes through",
			attempt: models.ConnectAttempt{
				Family: models.FamilyIPv4, Protocol: 17,
				DestIP: models.MetadataIP, DestPort: models.MetadataPort, CallerPID: 7,
			},
			want: models.VerdictAllow,
		},
		{
			name: "unwatched destination passes through",
			attempt: models.ConnectAttempt{
				Family: models.FamilyIPv4, Protocol: models.ProtocolTCP,
				DestIP: 0x08080808, DestPort: 443, CallerPID: 7,
			},
			want: models.VerdictAllow,
		},
		{name: "metadata attempt from another process is redirected", attempt: metadataFromOther, want: models.VerdictRedirect},
	}

	if mode == models.ModeDiscovery {
		metadataFromEmulator := metadataFromOther
		metadataFromEmulator.CallerPID = emulatorPID
		cases = append(cases,
			diagnoseCase{
				name: "discovery attempt after registration is redirected",
				attempt: models.ConnectAttempt{
					Family: models.FamilyIPv4, Protocol: models.ProtocolTCP,
					DestIP: models.DiscoveryIP, DestPort: models.DiscoveryPort, CallerPID: emulatorPID + 2,
				},
				want: models.VerdictRedirect,
			},
			diagnoseCase{name: "emulator's own metadata traffic is exempt", attempt: metadataFromEmulator, want: models.VerdictAllow},
		)
	}
	return cases
}

// Diagnose replays synthetic connect attempts through the decision engine and
// reports the verdicts. It runs the engine in userspace only; nothing is
// loaded into the kernel.
func Diagnose(_ context.Context, svc *Services, conf *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose",
		Short: "Replay synthetic connect attempts through the decision engine",
		RunE: func(_ *cobra.Command, _ []string) error {
			logger := svc.Logger

			emulatorIP, err := models.IPv4ToUint(conf.EmulatorIP)
			if err != nil {
				utils.LogError(logger, err, "invalid emulator IP", zap.String("ip", conf.EmulatorIP))
				return err
			}

			failures := 0
			for _, mode := range []models.Mode{models.ModeDiscovery, models.ModeSimple} {
				fmt.Printf("mode %s:\n", mode)

				store := engine.NewMemStore()
				store.Provision(structs.RedirectConfig{
					EmulatorIP:   emulatorIP,
					EmulatorPort: conf.EmulatorPort,
				})
				eng := engine.New(logger, mode, store)

				const emulatorPID = 1000
				if mode == models.ModeDiscovery {
					discovery := models.ConnectAttempt{
						Family: models.FamilyIPv4, Protocol: models.ProtocolTCP,
						DestIP: models.DiscoveryIP, DestPort: models.DiscoveryPort, CallerPID: emulatorPID,
					}
					if v := eng.Decide(&discovery); v.Kind != models.VerdictBlock {
						failures++
						color.Red("  FAIL discovery handshake: want block, got %s", v.Kind)
					} else {
						color.Green("  ok   discovery handshake blocks and latches pid %d", emulatorPID)
					}
				}

				for _, tc := range diagnoseCases(mode, emulatorPID) {
					attempt := tc.attempt
					verdict := eng.Decide(&attempt)
					if verdict.Kind != tc.want {
						failures++
						color.Red("  FAIL %s: want %s, got %s (%s)", tc.name, tc.want, verdict.Kind, attempt.String())
						continue
					}
					if verdict.Kind == models.VerdictRedirect &&
						(attempt.DestIP != emulatorIP || attempt.DestPort != conf.EmulatorPort) {
						failures++
						color.Red("  FAIL %s: destination not rewritten to the emulator (%s)", tc.name, attempt.String())
						continue
					}
					color.Green("  ok   %s -> %s", tc.name, verdict.Kind)
				}
			}

			if failures > 0 {
				return fmt.Errorf("%d diagnose %s failed", failures, plural(failures))
			}
			color.Green("all diagnose checks passed")
			return nil
		},
	}
}

func plural(n int) string {
	if n == 1 {
		return "check"
	}
	return "checks"
}
