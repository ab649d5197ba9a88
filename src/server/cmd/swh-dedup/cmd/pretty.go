package cmd

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/softwareheritage/swh-dedup/src/internal/dedupdb"
	"github.com/softwareheritage/swh-dedup/src/internal/storage/chunk"
	"github.com/softwareheritage/swh-dedup/src/internal/tabwriter"
)

const chunkHeader = "ID\tPOSITION\tLENGTH\tCOMPRESSED\n"

func printChunk(w *tabwriter.Writer, ch chunk.Chunk) {
	fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", ch.ID, ch.Position, ch.Length, ch.CompressedLength)
}

const methodSummaryHeader = "METHOD\tALGO\tCONTENTS\tCONTENT SIZE\tCHUNKS\tCHUNK SIZE\tCOMPRESSED\tDEDUP\tAVG TIME\n"

func percent(x float64) string {
	return fmt.Sprintf("%.2f%%", 100*x)
}

func bytesOf(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func printSummary(out io.Writer, sum *dedupdb.Summary) {
	fmt.Fprintf(out, "contents:          %s\n", humanize.Comma(sum.Contents))
	fmt.Fprintf(out, "chunks:            %s\n", humanize.Comma(sum.Chunks))
	fmt.Fprintf(out, "average chunk:     %s\n", bytesOf(int64(sum.AverageChunkSize)))
	fmt.Fprintf(out, "total content:     %s (%s compressed)\n", bytesOf(sum.ContentBytes), bytesOf(sum.ContentCompressedBytes))
	fmt.Fprintf(out, "total chunks:      %s (%s compressed)\n", bytesOf(sum.ChunkBytes), bytesOf(sum.ChunkCompressedBytes))
	fmt.Fprintf(out, "dedup ratio:       %s\n", percent(sum.DedupRatio()))
	if len(sum.Methods) == 0 {
		return
	}
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, methodSummaryHeader)
	for _, m := range sum.Methods {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%.0fus\n",
			m.MethodID, m.Algorithm,
			humanize.Comma(m.Contents), bytesOf(m.ContentBytes),
			humanize.Comma(m.Chunks), bytesOf(m.ChunkBytes), bytesOf(m.ChunkCompressedBytes),
			percent(m.DedupRatio()), m.AverageDurationUs)
	}
	w.Flush() //nolint:errcheck
}
