// Package vecrec is an embeddable client for the vecrec product recommender.
//
// The client keeps the product catalog in Redis and, when an embedder is
// configured, mirrors products into a Redis HNSW vector index used as the
// primary ranking tier. Without an embedder recommendations are computed
// locally from product attributes.
//
//	client, err := vecrec.New(ctx,
//	    vecrec.WithRedis("localhost:6379", ""),
//	    vecrec.WithEmbedder(myEmbedder, 1024),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	_ = client.Put(ctx, vecrec.Product{ID: 1, Name: "Trail Running Shoes", Category: "Shoes"})
//	similar, _ := client.Similar(ctx, 1, 5)
package vecrec
