// gomanip rolls out the batched manipulation environment with random
// actions, reporting reward and success statistics as it goes.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/samuelfneumann/progressbar"

	"github.com/samuelfneumann/gomanip/envconfig"
	"github.com/samuelfneumann/gomanip/sim"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gomanip",
		Short: "Batched robot-manipulation benchmark environments",
	}
	root.AddCommand(rolloutCmd())
	return root
}

func rolloutCmd() *cobra.Command {
	var configPath string
	var steps int

	cmd := &cobra.Command{
		Use:   "rollout",
		Short: "Step the environment with uniform random actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := envconfig.DefaultConfig()
			if configPath != "" {
				var err error
				config, err = envconfig.Load(configPath)
				if err != nil {
					return err
				}
			}
			return rollout(config, steps)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"YAML environment configuration; defaults apply when omitted")
	cmd.Flags().IntVarP(&steps, "steps", "s", 1000,
		"number of lockstep ticks to run")
	return cmd
}

func rollout(config envconfig.Config, steps int) error {
	env, _, err := config.Create(sim.NewDoubleIntegrator(config.NumEnvs))
	if err != nil {
		return err
	}

	actionDims := int(env.ActionSpec().Shape.AtVec(0))
	actions := mat.NewDense(config.NumEnvs, actionDims, nil)
	policy := distuv.Uniform{
		Min: -1.0,
		Max: 1.0,
		Src: rand.NewSource(config.Seed),
	}

	bar := progressbar.New(80, steps, time.Second, true)
	bar.Display()
	defer bar.Close()

	var totalReward float64
	var episodes, successes int

	for step := 0; step < steps; step++ {
		for i := 0; i < config.NumEnvs; i++ {
			for j := 0; j < actionDims; j++ {
				actions.Set(i, j, policy.Rand())
			}
		}

		t, err := env.Step(actions)
		if err != nil {
			return err
		}

		for i := 0; i < t.NumEnvs(); i++ {
			totalReward += t.Rewards.AtVec(i)
			if t.Done[i] {
				episodes++
			}
			if t.Success[i] {
				successes++
			}
		}

		bar.Increment()
	}

	fmt.Printf("\nRan %v ticks across %v environments\n", steps,
		config.NumEnvs)
	fmt.Printf("Mean reward per tick: %.4f\n",
		totalReward/float64(steps*config.NumEnvs))
	fmt.Printf("Episodes finished: %v  (successful: %v)\n", episodes,
		successes)
	return nil
}
