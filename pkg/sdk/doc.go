// Package visearch embeds visual similarity search over a static product
// catalog: an uploaded image is turned into a feature vector by an
// extractor, then ranked against the catalog by cosine similarity.
//
//	client, _ := visearch.New(ctx,
//	    visearch.WithCatalogFile("data/catalog.json"),
//	    visearch.WithFeatureAPI("http://localhost:5001"),
//	    visearch.WithThreshold(0.7),
//	)
//	defer client.Close()
//	results, _ := client.Search(ctx, imageBytes, "ring.jpg")
//
// Callers that already hold a vector can skip extraction:
//
//	results, _ := client.Match(vector)
package visearch
