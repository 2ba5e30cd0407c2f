package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/vecrec/internal/domain/product"
	"github.com/kailas-cloud/vecrec/internal/usecase/vectorsync"
)

// NewLoadCmd upserts products from a YAML seed file.
func NewLoadCmd(open openFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load --file products.yaml",
		Short: "Load products into the catalog",
		Long:  `Validate a YAML seed file and upsert every product. With --sync each product is also embedded into the vector index.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("file")
			withSync, _ := cmd.Flags().GetBool("sync")

			f, err := os.Open(filepath.Clean(path))
			if err != nil {
				return fmt.Errorf("open seed: %w", err)
			}
			defer f.Close()

			ps, err := readSeed(f)
			if err != nil {
				return err
			}

			svc, err := open(cmd)
			if err != nil {
				return err
			}
			if withSync && svc.syncer == nil {
				return errIndexDisabled
			}

			res := loadResult{}
			for _, p := range ps {
				if err := svc.catalog.Upsert(cmd.Context(), p); err != nil {
					return fmt.Errorf("upsert product %d: %w", p.ID(), err)
				}
				res.Loaded++
				if !withSync {
					continue
				}
				if _, err := svc.syncer.Sync(cmd.Context(), p.ID()); err != nil {
					res.Failed = append(res.Failed, syncFailure{ID: p.ID(), Error: err.Error()})
					continue
				}
				res.Synced++
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().String("file", "", "Path to the products YAML file")
	cmd.Flags().Bool("sync", false, "Sync loaded products into the vector index")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// NewSyncCmd embeds one product or the whole catalog into the vector index.
func NewSyncCmd(open openFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync products into the vector index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _ := cmd.Flags().GetInt64("id")
			workers, _ := cmd.Flags().GetInt("workers")

			svc, err := open(cmd)
			if err != nil {
				return err
			}
			if svc.syncer == nil {
				return errIndexDisabled
			}

			if id != 0 {
				ext, err := svc.syncer.Sync(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("sync product %d: %w", id, err)
				}
				return printJSON(cmd, map[string]any{"id": id, "external_id": ext})
			}

			start := time.Now()
			report, err := svc.syncer.SyncAll(cmd.Context(), workers)
			if err != nil {
				return fmt.Errorf("sync catalog: %w", err)
			}
			return printJSON(cmd, syncAllResult{Report: report, Elapsed: time.Since(start).Round(time.Millisecond).String()})
		},
	}
	cmd.Flags().Int64("id", 0, "Sync a single product")
	cmd.Flags().Int("workers", vectorsync.DefaultWorkers, "Concurrent sync workers")
	return cmd
}

// NewSimilarCmd prints products similar to one product.
func NewSimilarCmd(open openFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "similar <id>",
		Short: "Recommend products similar to a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")

			svc, err := open(cmd)
			if err != nil {
				return err
			}
			ps, err := svc.recommender.SimilarByID(cmd.Context(), ids[0], limit)
			if err != nil {
				return fmt.Errorf("recommend similar: %w", err)
			}
			return printJSON(cmd, toViews(ps))
		},
	}
	cmd.Flags().Int("limit", 5, "Number of recommendations")
	return cmd
}

// NewGroupCmd prints recommendations for a set of products.
func NewGroupCmd(open openFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group <id>...",
		Short: "Recommend products for a group of products",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")

			svc, err := open(cmd)
			if err != nil {
				return err
			}
			ps, err := svc.recommender.ForGroupByIDs(cmd.Context(), ids, limit)
			if err != nil {
				return fmt.Errorf("recommend for group: %w", err)
			}
			return printJSON(cmd, toViews(ps))
		},
	}
	cmd.Flags().Int("limit", 10, "Number of recommendations")
	return cmd
}

// NewPurgeCmd deletes products and their vectors.
func NewPurgeCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <id>...",
		Short: "Delete products from the catalog and the vector index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			svc, err := open(cmd)
			if err != nil {
				return err
			}
			if svc.syncer != nil {
				if err := svc.syncer.Remove(cmd.Context(), ids); err != nil {
					return fmt.Errorf("remove vectors: %w", err)
				}
			}
			for _, id := range ids {
				if err := svc.catalog.Delete(cmd.Context(), id); err != nil {
					return fmt.Errorf("delete product %d: %w", id, err)
				}
			}
			return printJSON(cmd, map[string]any{"purged": ids})
		},
	}
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, len(args))
	for i, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid product id %q", a)
		}
		ids[i] = id
	}
	return ids, nil
}

type loadResult struct {
	Loaded int           `json:"loaded"`
	Synced int           `json:"synced"`
	Failed []syncFailure `json:"failed,omitempty"`
}

type syncFailure struct {
	ID    int64  `json:"id"`
	Error string `json:"error"`
}

type syncAllResult struct {
	vectorsync.Report
	Elapsed string `json:"elapsed"`
}

type productView struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Category   string  `json:"category,omitempty"`
	Brand      string  `json:"brand,omitempty"`
	Price      float64 `json:"price"`
	Rating     float64 `json:"rating"`
	NumReviews int     `json:"num_reviews"`
	ExternalID string  `json:"external_id,omitempty"`
}

func toViews(ps []product.Product) []productView {
	out := make([]productView, len(ps))
	for i, p := range ps {
		out[i] = productView{
			ID:         p.ID(),
			Name:       p.Name(),
			Category:   p.Category(),
			Brand:      p.Brand(),
			Price:      p.Price(),
			Rating:     p.Rating(),
			NumReviews: p.NumReviews(),
			ExternalID: p.ExternalID(),
		}
	}
	return out
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
