package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/castmatch/castmatch/internal/config"
)

// --- seed ---

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo campaigns and influencers into a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		for _, campaign := range seedCampaigns {
			resp, err := client.post(ctx, "/campaigns", campaign)
			if err != nil {
				return err
			}
			var created struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			}
			if err := decodeJSON(resp, &created); err != nil {
				return err
			}
			printSuccess("Campaign %s (%s)", created.Title, created.ID[:8])
		}

		for _, influencer := range seedInfluencers {
			resp, err := client.post(ctx, "/influencers", influencer)
			if err != nil {
				return err
			}
			var created struct {
				ID     string `json:"id"`
				Handle string `json:"handle"`
			}
			if err := decodeJSON(resp, &created); err != nil {
				return err
			}
			printSuccess("Influencer @%s (%s)", created.Handle, created.ID[:8])
		}

		printStep("Seeded %d campaigns and %d influencers", len(seedCampaigns), len(seedInfluencers))
		return nil
	},
}

var seedCampaigns = []map[string]any{
	{
		"title":          "Diwali Ethnic Wear Launch",
		"categories":     []string{"fashion", "lifestyle"},
		"requiredSkills": []string{"reels"},
		"deliverables":   map[string]int{"reel": 2, "post": 1},
		"budget":         map[string]any{"currency": "INR", "min": 5000, "max": 25000},
		"constraints": map[string]any{
			"platforms":           []string{"instagram"},
			"minStabilityOverall": 50,
			"maxTrendDependence":  100,
			"maxAuthenticityRisk": 100,
		},
	},
	{
		"title":          "Protein Snack Sampling",
		"categories":     []string{"fitness", "food"},
		"requiredSkills": []string{"reels", "post"},
		"deliverables":   map[string]int{"reel": 1, "post": 2},
		"budget":         map[string]any{"currency": "INR", "min": 2000, "max": 12000},
		"constraints": map[string]any{
			"platforms":           []string{"instagram", "youtube"},
			"minStabilityOverall": 0,
			"maxTrendDependence":  100,
			"maxAuthenticityRisk": 100,
		},
	},
}

var seedInfluencers = []map[string]any{
	{
		"handle":     "styles.by.ananya",
		"platform":   "instagram",
		"categories": []string{"fashion", "beauty"},
		"competence": map[string]float64{"reels": 85, "post": 70},
		"stability": map[string]any{
			"overall": 78, "volatility": 20, "trendDependence": 35,
			"audienceMemory": 72, "monetizationReadiness": 64,
		},
		"pricing":   map[string]any{"currency": "INR", "reel": 8000, "post": 4000, "story": 1500},
		"instagram": map[string]any{"igUserId": "ananya", "sourceMode": "mock"},
	},
	{
		"handle":     "fitwithrohan",
		"platform":   "instagram",
		"categories": []string{"fitness"},
		"competence": map[string]float64{"reels": 75, "post": 80},
		"stability": map[string]any{
			"overall": 65, "volatility": 40, "trendDependence": 55,
			"audienceMemory": 58, "monetizationReadiness": 70,
		},
		"pricing":   map[string]any{"currency": "INR", "reel": 5000, "post": 3000, "story": 1000},
		"instagram": map[string]any{"igUserId": "rohan", "sourceMode": "mock"},
	},
	{
		"handle":     "dailybitesblr",
		"platform":   "instagram",
		"categories": []string{"food", "lifestyle"},
		"competence": map[string]float64{"reels": 60, "post": 88},
		"stability": map[string]any{
			"overall": 82, "volatility": 12, "trendDependence": 25,
			"audienceMemory": 80, "monetizationReadiness": 55,
		},
		"pricing":   map[string]any{"currency": "INR", "reel": 6000, "post": 3500, "story": 1200},
		"instagram": map[string]any{"igUserId": "dailybites", "sourceMode": "mock"},
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List valid configuration keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(config.ValidKeys())
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configKeysCmd)
}
