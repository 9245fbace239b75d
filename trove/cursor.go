package trove

import (
	"context"
	"fmt"
	"io"

	"github.com/hamba/avro/v2/ocf"
)

// Cursor is a single forward pass over a store's record sequence. It holds
// the explicit traversal state (shard index, intra-shard offset, global
// index) and keeps at most one shard open at a time. Indices are strictly
// increasing within one pass; there is no random access and no rewind.
//
// Usage follows the scanner idiom:
//
//	cur := store.Records(ctx)
//	defer cur.Close()
//	for cur.Next(ctx) {
//	    use(cur.Index(), cur.Record())
//	}
//	if err := cur.Err(); err != nil { ... }
type Cursor struct {
	store *DataStore

	shard int // index of the next shard to open
	rc    io.ReadCloser
	dec   *ocf.Decoder

	intra  int64
	global int64

	rec  Record
	err  error
	done bool
}

// Next advances to the next record. It returns false at end of sequence or
// on error; Err distinguishes the two. Blocking happens here, at shard-open
// and physical read boundaries.
func (c *Cursor) Next(ctx context.Context) bool {
	if c.done || c.err != nil {
		return false
	}

	for {
		if c.dec == nil {
			if c.shard >= len(c.store.shards) {
				c.done = true
				return false
			}
			if err := c.openShard(ctx); err != nil {
				return c.fail(err)
			}
		}

		if !c.dec.HasNext() {
			if err := c.dec.Error(); err != nil {
				return c.fail(fmt.Errorf("trove: reading shard %s: %w", c.currentShard(), err))
			}
			c.closeShard()
			c.shard++
			continue
		}

		rec := make(Record)
		if err := c.dec.Decode(&rec); err != nil {
			return c.fail(fmt.Errorf("trove: decoding shard %s: %w", c.currentShard(), err))
		}

		if c.store.readerRecord != nil {
			projected, err := projectRecord(rec, c.store.readerRecord)
			if err != nil {
				return c.fail(err)
			}
			rec = projected
		}

		c.global++
		c.intra++
		c.rec = rec
		return true
	}
}

// Index returns the global index of the current record.
func (c *Cursor) Index() int64 { return c.global }

// Record returns the current record.
func (c *Cursor) Record() Record { return c.rec }

// Err returns the error that stopped the pass, if any.
func (c *Cursor) Err() error { return c.err }

// Close releases the open shard, if any. Safe to call on every exit path,
// including early stops and errors.
func (c *Cursor) Close() error {
	c.done = true
	if c.rc == nil {
		return nil
	}
	err := c.rc.Close()
	c.rc = nil
	c.dec = nil
	return err
}

func (c *Cursor) openShard(ctx context.Context) error {
	shard := c.store.shards[c.shard]

	rc, err := shard.OpenRead(ctx)
	if err != nil {
		return fmt.Errorf("trove: opening shard %s: %w", shard, err)
	}

	dec, err := ocf.NewDecoder(rc)
	if err != nil {
		_ = rc.Close()
		return fmt.Errorf("trove: reading shard %s: %w", shard, err)
	}

	// Reader-schema resolution happens per shard: each shard's own writer
	// schema must be compatible with the requested projection.
	if c.store.reader != nil {
		writer, err := decoderSchema(dec)
		if err != nil {
			_ = rc.Close()
			return fmt.Errorf("trove: shard %s: %w", shard, err)
		}
		if err := c.store.compat.Compatible(c.store.reader, writer); err != nil {
			_ = rc.Close()
			return fmt.Errorf("trove: %w: reader schema incompatible with %s: %v", ErrInvalidSchema, shard, err)
		}
	}

	c.rc = rc
	c.dec = dec
	c.intra = 0
	return nil
}

func (c *Cursor) closeShard() {
	if c.rc != nil {
		_ = c.rc.Close()
	}
	c.rc = nil
	c.dec = nil
}

func (c *Cursor) currentShard() Path {
	return c.store.shards[c.shard]
}

func (c *Cursor) fail(err error) bool {
	c.err = err
	c.closeShard()
	c.done = true
	return false
}
