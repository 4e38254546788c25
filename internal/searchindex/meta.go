package searchindex

import (
	"strconv"
	"time"

	"github.com/erbhushanpawar/sqldb-go/internal/types"
)

func parseMeta(fields map[string]string) types.IndexMeta {
	meta := types.IndexMeta{}
	meta.TotalDocuments, _ = strconv.Atoi(fields["totalDocuments"])
	meta.TotalTerms, _ = strconv.Atoi(fields["totalTerms"])
	meta.TotalTokens, _ = strconv.Atoi(fields["totalTokens"])
	if ms, err := strconv.ParseInt(fields["buildDurationMs"], 10, 64); err == nil {
		meta.BuildDurationMs = ms
	}
	if t, err := time.Parse(time.RFC3339, fields["lastBuildTime"]); err == nil {
		meta.LastBuildTime = t
	}
	return meta
}
