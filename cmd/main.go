/*
 * Copyright 2026 Hewlett Packard Enterprise Development LP
 * Other additional copyright holders may be indicated within.
 *
 * The entirety of this work is licensed under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 *
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"

	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	// to ensure that exec-entrypoint and run can make use of them.
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	kruntime "k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	zapcr "sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	nnfv1alpha1 "github.com/NearNodeFlash/nnf-lvm/api/v1alpha1"
	"github.com/NearNodeFlash/nnf-lvm/internal/config"
	controllers "github.com/NearNodeFlash/nnf-lvm/internal/controller"
	"github.com/NearNodeFlash/nnf-lvm/pkg/blockdevice"
	"github.com/NearNodeFlash/nnf-lvm/pkg/blockdevice/lvm"
	"github.com/NearNodeFlash/nnf-lvm/pkg/command"
	"github.com/NearNodeFlash/nnf-lvm/pkg/engine"
	//+kubebuilder:scaffold:imports
)

var (
	scheme   = kruntime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

const (
	ApplyCommand      = "apply"
	ControllerCommand = "controller"
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))

	utilruntime.Must(nnfv1alpha1.AddToScheme(scheme))
	//+kubebuilder:scaffold:scheme
}

func main() {
	subcommand := ControllerCommand
	args := os.Args[1:]
	if len(args) != 0 && (args[0] == ApplyCommand || args[0] == ControllerCommand) {
		subcommand = args[0]
		args = args[1:]
	}

	switch subcommand {
	case ApplyCommand:
		os.Exit(runApply(args, os.Stdout))
	case ControllerCommand:
		runController(args)
	}
}

func runController(args []string) {
	var metricsAddr string
	var probeAddr string
	var configPath string
	flag.StringVar(&metricsAddr, "metrics-bind-address", ":8080", "The address the metric endpoint binds to.")
	flag.StringVar(&probeAddr, "health-probe-bind-address", ":8081", "The address the probe endpoint binds to.")
	flag.StringVar(&configPath, "config", "", "Path to the TOML configuration file. Defaults to $"+config.PathEnv+".")

	zapopts := zapcr.Options{
		Development: true,
		Encoder:     zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
	}
	zapopts.BindFlags(flag.CommandLine)

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [controller] [flags]\n       %s apply -f FILE [--mock] [--dry-run] [--retries N]\n\n", os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}

	if err := flag.CommandLine.Parse(args); err != nil {
		os.Exit(2)
	}

	ctrl.SetLogger(zapcr.New(zapcr.UseFlagOptions(&zapopts)))

	setupLog.Info("GOMAXPROCS", "value", runtime.GOMAXPROCS(0))

	cfg, err := config.Load(configPath)
	if err != nil {
		setupLog.Error(err, "unable to load configuration")
		os.Exit(1)
	}

	if len(cfg.NodeName) == 0 {
		setupLog.Info("node name is required; set " + config.NodeNameEnv + " or node_name")
		os.Exit(1)
	}

	options := ctrl.Options{
		Scheme:                 scheme,
		Metrics:                metricsserver.Options{BindAddress: metricsAddr},
		HealthProbeBindAddress: probeAddr,
		Cache: cache.Options{
			DefaultNamespaces: map[string]cache.Config{cfg.NodeName: {}},
		},
	}

	restConfig := ctrl.GetConfigOrDie()
	qpsString, found := os.LookupEnv("NNF_REST_CONFIG_QPS")
	if found {
		qps, err := strconv.ParseFloat(qpsString, 32)
		if err != nil {
			setupLog.Error(err, "invalid value for NNF_REST_CONFIG_QPS")
			os.Exit(1)
		}
		restConfig.QPS = float32(qps)
	}

	burstString, found := os.LookupEnv("NNF_REST_CONFIG_BURST")
	if found {
		burst, err := strconv.Atoi(burstString)
		if err != nil {
			setupLog.Error(err, "invalid value for NNF_REST_CONFIG_BURST")
			os.Exit(1)
		}
		restConfig.Burst = burst
	}

	mgr, err := ctrl.NewManager(restConfig, options)
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		os.Exit(1)
	}

	log := ctrl.Log.WithName("controllers").WithName("NnfLogicalVolume")
	if err := (&controllers.NnfLogicalVolumeReconciler{
		Client:                  mgr.GetClient(),
		Log:                     log,
		Scheme:                  mgr.GetScheme(),
		Engine:                  engine.NewReconciler(log.WithName("engine"), newLvmDevice(log, cfg)),
		NodeName:                cfg.NodeName,
		ResyncPeriod:            cfg.ResyncPeriod,
		MaxConcurrentReconciles: cfg.Concurrency,
	}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "NnfLogicalVolume")
		os.Exit(1)
	}
	//+kubebuilder:scaffold:builder

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		os.Exit(1)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		os.Exit(1)
	}

	setupLog.Info("starting manager", "node", cfg.NodeName)
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "problem running manager")
		os.Exit(1)
	}
}

// newLvmDevice builds the lvm2 device layer from the configuration.
func newLvmDevice(log logr.Logger, cfg config.Config) *blockdevice.Lvm {
	clientOpts := []lvm.ClientOption{lvm.WithRunner(command.WithTimeout(cfg.CommandTimeout))}
	if cfg.Tracing {
		clientOpts = append(clientOpts, lvm.WithTracerProvider(otel.GetTracerProvider()))
	}

	device := blockdevice.NewLvm(log.WithName("lvm"), lvm.NewClient(log.WithName("lvm"), clientOpts...))
	device.MaxStripeCount = cfg.MaxStripeCount
	device.WaitForDevice = cfg.WaitForDevice

	return device
}

// signalContext is cancelled on SIGINT or SIGTERM. Running device commands
// finish; remaining actions are skipped.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
