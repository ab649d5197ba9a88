/*
Package chunk implements content-defined chunking.

A byte stream is cut wherever a rolling hash over the last WindowSize bytes matches a bit
pattern, subject to a minimum and maximum chunk length.  Because cut points depend on the
content rather than on offsets, an insertion early in a file only changes the chunks around
it; the rest of the file still produces chunks with the same IDs, which is what makes
deduplication across objects work.

Two rolling hashes are supported, selected by Algorithm: a Rabin-Karp fingerprint over an
irreducible polynomial (Rabin), and buzhash (Buzhash).  The hash is reset at every cut, so a
cut point depends only on the bytes of the chunk it ends.

ComputeChunks and Chunker are the streaming forms; Split is the convenience form for data
already in memory.
*/
package chunk
