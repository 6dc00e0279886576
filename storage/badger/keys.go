package badger

import (
	"encoding/binary"
	"strings"

	"github.com/poiesic/askdb/core"
)

// Key prefixes for different data types
const (
	chunkPrefix       = "chk"
	lexicalPrefix     = "lex"
	vectorIndexPrefix = "vix"
	collectionPrefix  = "col"
)

// sanitizeSource maps a source id to a key-safe collection name.
// Every non-alphanumeric byte becomes an underscore. The mapping is
// not injective; callers that need distinct collections must use
// source ids that remain distinct after sanitization.
func sanitizeSource(sourceId string) string {
	var b strings.Builder
	b.Grow(len(sourceId))
	for i := 0; i < len(sourceId); i++ {
		c := sourceId[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// appendID appends an ID as 8 BigEndian bytes so it can be recovered
// from a key suffix regardless of what precedes it.
func appendID(buf []byte, id core.ID) []byte {
	var idBytes [8]byte
	binary.BigEndian.PutUint64(idBytes[:], uint64(id))
	return append(buf, idBytes[:]...)
}

// chunkIDFromKey recovers the chunk ID from the last 8 bytes of a key.
func chunkIDFromKey(key []byte) core.ID {
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}

// appendGeneration appends a generation as 8 BigEndian bytes plus a
// ':' terminator. The fixed width and the terminators keep every
// source's prefixes from being a byte-prefix of another source's keys
// (src "db1" must never match keys of src "db12").
func appendGeneration(buf []byte, gen uint64) []byte {
	var genBytes [8]byte
	binary.BigEndian.PutUint64(genBytes[:], gen)
	buf = append(buf, genBytes[:]...)
	return append(buf, ':')
}

// makeCollectionKey generates the key of a source's generation pointer.
// Format: col:<src>:
func makeCollectionKey(src string) []byte {
	return []byte(collectionPrefix + ":" + src + ":")
}

// makeChunkKey generates a key for a chunk record.
// Format: chk:<src>:<gen>:<id>
func makeChunkKey(src string, gen uint64, id core.ID) []byte {
	return appendID(makeChunkPrefix(src, gen), id)
}

// makeChunkPrefix generates the scan prefix for one generation's chunk
// records.
func makeChunkPrefix(src string, gen uint64) []byte {
	return appendGeneration([]byte(chunkPrefix+":"+src+":"), gen)
}

// makeLexicalKey generates a posting key for the lexical index.
// Format: lex:<src>:<gen>:<term>:<id>
func makeLexicalKey(src string, gen uint64, term string, id core.ID) []byte {
	return appendID(makeLexicalTermPrefix(src, gen, term), id)
}

// makeLexicalTermPrefix generates the scan prefix for one term's postings.
func makeLexicalTermPrefix(src string, gen uint64, term string) []byte {
	return append(makeLexicalPrefix(src, gen), []byte(term+":")...)
}

// makeLexicalPrefix generates the scan prefix for one generation's postings.
func makeLexicalPrefix(src string, gen uint64) []byte {
	return appendGeneration([]byte(lexicalPrefix+":"+src+":"), gen)
}

// makeVectorIndexKey generates the key for a generation's stored
// centroid index. Format: vix:<src>:<gen>
func makeVectorIndexKey(src string, gen uint64) []byte {
	return appendGeneration([]byte(vectorIndexPrefix+":"+src+":"), gen)
}
