package backend

import (
	"context"
	"encoding/json"
	"time"
)

// SongDetector runs one detection: acquire, size check, fingerprint.
// Files it downloads are released before Detect returns; an uploaded
// file stays with the caller that saved it.
type SongDetector struct {
	acquirer    *Acquirer
	fingerprint *FingerprintClient
}

func NewSongDetector(acquirer *Acquirer, fingerprint *FingerprintClient) *SongDetector {
	return &SongDetector{acquirer: acquirer, fingerprint: fingerprint}
}

// Detect returns the recognition payload for req. The work is detached
// from ctx cancellation so a client hang-up cannot strand a download or
// skip cleanup.
func (d *SongDetector) Detect(ctx context.Context, req DetectionRequest) (json.RawMessage, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	if req.Upload == nil && req.URL == "" {
		return nil, newError(KindBadRequest, "Upload a file or provide url in 'url' field.", nil)
	}

	// An oversized upload is PayloadTooLarge even without a key. Remote
	// media is never fetched without a usable recognition API.
	var audio *TempFile
	if req.Upload != nil {
		var err error
		if audio, err = d.acquirer.Acquire(ctx, req); err != nil {
			return nil, err
		}
	}

	if !d.fingerprint.Configured() {
		return d.fingerprint.Detect(ctx, "")
	}

	if audio == nil {
		downloaded, err := d.acquirer.Acquire(ctx, req)
		if err != nil {
			return nil, err
		}
		defer downloaded.Release()
		audio = downloaded
	}

	payload, err := d.fingerprint.Detect(ctx, audio.Path())
	if err != nil {
		return nil, err
	}

	Logger.Debug("detection complete", "source", req.source(), "took", time.Since(start))
	return payload, nil
}

func (r DetectionRequest) source() string {
	if r.Upload != nil {
		return "upload"
	}
	return "url"
}
