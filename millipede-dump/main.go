// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// millipede-dump inspects the feature-space side of a fuzzing session:
// the domain layout, persisted feature vectors, and per-domain tallies.
package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bradleyjkemp/millipede/cover"
	"github.com/bradleyjkemp/millipede/feature"
)

func main() {
	root := &cobra.Command{
		Use:           "millipede-dump",
		Short:         "inspect millipede feature vectors and the domain layout",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(domainsCmd(), decodeCmd(), tallyCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func domainsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "print the feature domain table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("%-4s %-14s %-12s %-12s\n", "id", "name", "begin", "end")
			for _, d := range feature.Domains {
				fmt.Printf("%-4d %-14s %-12d %-12d\n", d.ID(), d.Name(), d.Begin(), d.End())
			}
			return nil
		},
	}
}

func decodeCmd() *cobra.Command {
	var hexArgs bool
	cmd := &cobra.Command{
		Use:   "decode <file | values...>",
		Short: "decode a persisted feature vector into domain/index rows",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vec, err := loadFeatures(args, hexArgs)
			if err != nil {
				return err
			}
			fmt.Printf("%-20s %-14s %s\n", "feature", "domain", "index")
			for _, f := range vec {
				d := feature.DomainByID(feature.DomainIDOf(f))
				fmt.Printf("%-20d %-14s %d\n", uint64(f), d.Name(), feature.IndexInDomain(f))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&hexArgs, "hex", false, "treat arguments as hex feature values instead of a file")
	return cmd
}

func tallyCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "tally <file...>",
		Short: "aggregate feature vectors into per-domain counts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set := cover.NewFeatureSet()
			total := 0
			for _, path := range args {
				vec, err := readVecFile(path)
				if err != nil {
					return err
				}
				total += len(vec)
				set.AddFeatures(vec)
			}
			fmt.Printf("features: %v total, %v distinct\n", total, set.Len())
			for _, d := range feature.Domains {
				if n := set.DomainCount(d); n > 0 {
					fmt.Printf("%-14s %d\n", d.Name(), n)
				}
			}
			if metricsAddr == "" {
				return nil
			}
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			logger.Info("serving metrics", zap.String("addr", metricsAddr))
			http.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}))
			return http.ListenAndServe(metricsAddr, nil)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "serve prometheus metrics on this address after tallying")
	return cmd
}

func loadFeatures(args []string, hexArgs bool) ([]feature.Feature, error) {
	if !hexArgs {
		return readVecFile(args[0])
	}
	vec := make([]feature.Feature, 0, len(args))
	for _, arg := range args {
		v, err := strconv.ParseUint(arg, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("bad feature value %q: %v", arg, err)
		}
		vec = append(vec, feature.Feature(v))
	}
	return vec, nil
}

func readVecFile(path string) ([]feature.Feature, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return feature.ReadVec(f)
}
