package vecsearch_test

import (
	"context"
	"fmt"

	"github.com/hupe1980/vecsearch"
	"github.com/hupe1980/vecsearch/embed"
	"github.com/hupe1980/vecsearch/quantization"
)

func Example() {
	ctx := context.Background()
	e := embed.NewHashEmbedder(8)

	texts := []string{
		"refund policy for damaged goods",
		"parcel tracking and delivery status",
		"reset your account password",
		"invoice overdue payment reminder",
	}
	sample, _ := e.EmbedBatch(ctx, texts)

	q := quantization.MustNew(quantization.Config{Segments: 2, ClusterCount: 2, Dimension: 8})
	if err := q.Train(sample); err != nil {
		panic(err)
	}

	s := vecsearch.New(q, e)
	ids := []uint32{1, 2, 3, 4}
	if _, err := s.AddTexts(ctx, ids, texts); err != nil {
		panic(err)
	}

	hits, err := s.SearchText(ctx, "parcel tracking and delivery status", 2, 1)
	if err != nil {
		panic(err)
	}
	fmt.Println(hits[0].ID, hits[0].Texts[0])
	// Output: 2 parcel tracking and delivery status
}
