// Package testutil provides test data generators.
package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/s3types"
)

// TestDataGenerator provides methods for generating test data.
type TestDataGenerator struct {
	rand *rand.Rand
}

// NewTestDataGenerator creates a new test data generator with a seeded random source.
func NewTestDataGenerator(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		rand: rand.New(rand.NewSource(seed)),
	}
}

// GenerateRecords generates count listed versions under prefix.
// Every fifth record is a delete marker.
func (g *TestDataGenerator) GenerateRecords(count int, prefix string) []s3types.VersionRecord {
	records := make([]s3types.VersionRecord, count)
	baseTime := time.Now().Add(-24 * time.Hour)

	for i := range count {
		records[i] = s3types.VersionRecord{
			Key:            fmt.Sprintf("%sobject-%04d.txt", prefix, i),
			VersionID:      g.versionID(),
			LastModified:   baseTime.Add(time.Duration(i) * time.Minute),
			IsDeleteMarker: i%5 == 4,
			IsLatest:       true,
		}
		if !records[i].IsDeleteMarker {
			records[i].Size = int64(g.rand.Intn(1000000) + 1000)
		}
	}

	return records
}

// GenerateVersions generates count S3 object versions under prefix.
func (g *TestDataGenerator) GenerateVersions(count int, prefix string) []types.ObjectVersion {
	versions := make([]types.ObjectVersion, count)
	baseTime := time.Now().Add(-24 * time.Hour)

	for i := range count {
		key := fmt.Sprintf("%sobject-%04d.txt", prefix, i)
		size := int64(g.rand.Intn(1000000) + 1000)
		versions[i] = CreateTestObjectVersion(key, g.versionID(), size, baseTime.Add(time.Duration(i)*time.Minute))
	}

	return versions
}

// versionID generates an S3-style opaque version id.
func (g *TestDataGenerator) versionID() string {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789._"
	id := make([]byte, 32)
	for i := range id {
		id[i] = alphabet[g.rand.Intn(len(alphabet))]
	}
	return string(id)
}
