package list

import (
	"context"
	"fmt"
	"testing"

	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/internal/testutil"
)

// BenchmarkPaginator measures walking a versioned listing to the end.
func BenchmarkPaginator(b *testing.B) {
	testCases := []struct {
		name     string
		versions int
		pageSize int32
	}{
		{"SmallDataset", 1000, 100},
		{"MediumDataset", 10000, 500},
		{"OptimalPageSize", 20000, 1000},
	}

	for _, tc := range testCases {
		b.Run(tc.name, func(b *testing.B) {
			bucket := testutil.NewVersionedBucket("test-bucket")
			for i := range tc.versions {
				bucket.PutObject(fmt.Sprintf("logs/%06d", i), 1024)
			}
			lister := New(bucket)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				paginator := lister.Versions(&Config{
					Bucket:   "test-bucket",
					Prefix:   "logs/",
					PageSize: tc.pageSize,
				})
				total := 0
				for paginator.HasMorePages() {
					page, err := paginator.NextPage(context.Background())
					if err != nil {
						b.Fatal(err)
					}
					total += len(page.Records)
				}
				if total != tc.versions {
					b.Fatalf("expected %d versions, got %d", tc.versions, total)
				}
			}
		})
	}
}
