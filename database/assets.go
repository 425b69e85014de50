// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/recordwire/apierror"
	"github.com/bureau-foundation/recordwire/field"
	"github.com/bureau-foundation/recordwire/lib/netutil"
	"github.com/bureau-foundation/recordwire/lib/ref"
	"github.com/bureau-foundation/recordwire/lib/version"
	"github.com/bureau-foundation/recordwire/record"
)

// uploadTarget is one asset occurrence awaiting upload: the save it
// belongs to and the slot holding it.
type uploadTarget struct {
	save  int
	slot  record.AssetSlot
	asset *field.Asset
	url   string
}

// tokenKey identifies which targets a returned upload token may serve.
type tokenKey struct {
	recordName string
	fieldName  string
}

type tokenRequest struct {
	ZoneID *ref.ZoneID  `json:"zoneID,omitempty"`
	Tokens []tokenQuery `json:"tokens"`
}

type tokenQuery struct {
	RecordType string `json:"recordType"`
	FieldName  string `json:"fieldName"`
	RecordName string `json:"recordName"`
}

type tokenResponse struct {
	Tokens []uploadToken `json:"tokens"`
}

type uploadToken struct {
	RecordName string `json:"recordName"`
	FieldName  string `json:"fieldName"`
	URL        string `json:"url"`
}

type uploadResponse struct {
	SingleFile *field.Receipt `json:"singleFile"`
}

// uploadAssets uploads every pending asset among the keys each save
// will transmit and returns, per save, the receipt issued for each
// asset slot. Each occurrence gets its own token and upload, so an
// *Asset held by two records or fields is uploaded once per slot. The
// last receipt is also attached to the asset.
func (c *Client) uploadAssets(ctx context.Context, zone ref.ZoneID, saves []*record.Record, plans []savePlan) ([]map[record.AssetSlot]field.Receipt, error) {
	const op = "assets/upload"

	var targets []uploadTarget
	for i, r := range saves {
		err := r.Assets(plans[i].keys, func(slot record.AssetSlot, asset *field.Asset) error {
			needs, err := asset.NeedsUpload()
			if err != nil {
				return apierror.AssetNotLocal(op, r.ID().String(), slot.Key, err)
			}
			if !needs {
				return nil
			}
			path := asset.Path()
			if path == "" {
				return apierror.AssetNotLocal(op, r.ID().String(), slot.Key, errors.New("asset has no file path"))
			}
			info, err := os.Stat(path)
			if err != nil {
				return apierror.AssetNotLocal(op, r.ID().String(), slot.Key, err)
			}
			if !info.Mode().IsRegular() {
				return apierror.AssetNotLocal(op, r.ID().String(), slot.Key, fmt.Errorf("%s is not a regular file", path))
			}
			targets = append(targets, uploadTarget{save: i, slot: slot, asset: asset})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if len(targets) == 0 {
		return nil, nil
	}

	request := tokenRequest{ZoneID: &zone, Tokens: make([]tokenQuery, len(targets))}
	pending := make(map[tokenKey][]int)
	for i, target := range targets {
		r := saves[target.save]
		request.Tokens[i] = tokenQuery{
			RecordType: r.Type(),
			FieldName:  target.slot.Key,
			RecordName: r.ID().Name(),
		}
		key := tokenKey{recordName: r.ID().Name(), fieldName: target.slot.Key}
		pending[key] = append(pending[key], i)
	}
	var response tokenResponse
	if err := c.call(ctx, "assets", "upload", request, &response); err != nil {
		return nil, err
	}
	if len(response.Tokens) != len(targets) {
		return nil, apierror.Malformed(op, "requested %d upload tokens, received %d", len(targets), len(response.Tokens))
	}

	// Tokens for the same record field are handed out in request order.
	for i, token := range response.Tokens {
		key := tokenKey{recordName: token.RecordName, fieldName: token.FieldName}
		queue := pending[key]
		if len(queue) == 0 {
			return nil, apierror.Malformed(op, "token %d is for %s.%s, which has no pending asset", i, token.RecordName, token.FieldName)
		}
		if token.URL == "" {
			return nil, apierror.MissingKey(op, "url")
		}
		targets[queue[0]].url = token.URL
		pending[key] = queue[1:]
	}

	receipts := make([]map[record.AssetSlot]field.Receipt, len(saves))
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return nil, apierror.Cancelled(op, err)
		}
		receipt, digest, err := c.uploadFile(ctx, target.url, target.asset.Path())
		if err != nil {
			return nil, err
		}
		target.asset.Attach(receipt, digest)
		if receipts[target.save] == nil {
			receipts[target.save] = make(map[record.AssetSlot]field.Receipt)
		}
		receipts[target.save][target.slot] = receipt
		c.logger.Debug("uploaded asset",
			"record", saves[target.save].ID().String(),
			"field", target.slot.Key,
			"index", target.slot.Index,
			"size", receipt.Size,
			"digest", digest.String(),
		)
		if err := ctx.Err(); err != nil {
			return nil, apierror.Cancelled(op, err)
		}
	}
	c.logger.Info("uploaded assets", "zone", zone.String(), "count", len(targets))
	return receipts, nil
}

// uploadFile streams the file at path to uploadURL as a multipart form
// and returns the receipt with the digest of the bytes actually sent.
// Upload URLs are pre-authorized and are not signed.
func (c *Client) uploadFile(ctx context.Context, uploadURL, path string) (field.Receipt, field.Digest, error) {
	const op = "asset upload"

	file, err := os.Open(path)
	if err != nil {
		return field.Receipt{}, field.Digest{}, apierror.AssetNotLocal(op, path, "", err)
	}
	defer file.Close()

	hasher := blake3.New()
	var sent int64
	pipeReader, pipeWriter := io.Pipe()
	form := multipart.NewWriter(pipeWriter)
	copied := make(chan struct{})
	go func() {
		defer close(copied)
		part, err := form.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pipeWriter.CloseWithError(err)
			return
		}
		sent, err = io.Copy(part, io.TeeReader(file, hasher))
		if err != nil {
			pipeWriter.CloseWithError(err)
			return
		}
		pipeWriter.CloseWithError(form.Close())
	}()

	request, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPost, uploadURL, pipeReader)
	if err != nil {
		pipeReader.Close()
		<-copied
		return field.Receipt{}, field.Digest{}, fmt.Errorf("database: creating upload request: %w", err)
	}
	request.Header.Set("Content-Type", form.FormDataContentType())
	request.Header.Set("User-Agent", version.UserAgent())

	response, err := c.httpClient.Do(request)
	if err != nil {
		pipeReader.Close()
		<-copied
		if ctxErr := ctx.Err(); ctxErr != nil {
			return field.Receipt{}, field.Digest{}, apierror.Cancelled(op, ctxErr)
		}
		return field.Receipt{}, field.Digest{}, apierror.Transport(op, err)
	}
	defer response.Body.Close()
	if response.StatusCode >= 400 {
		errorBody := netutil.ErrorBody(response)
		pipeReader.Close()
		<-copied
		return field.Receipt{}, field.Digest{}, apierror.FromResponse(op, response.StatusCode, response.Header, errorBody)
	}
	body, err := netutil.ReadBody(response)
	pipeReader.Close()
	<-copied
	if err != nil {
		return field.Receipt{}, field.Digest{}, apierror.Transport(op, err)
	}

	var decoded uploadResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return field.Receipt{}, field.Digest{}, apierror.Decode(op, err)
	}
	if decoded.SingleFile == nil {
		return field.Receipt{}, field.Digest{}, apierror.MissingKey(op, "singleFile")
	}
	receipt := *decoded.SingleFile
	if receipt.Size == 0 {
		receipt.Size = sent
	}

	var digest field.Digest
	copy(digest[:], hasher.Sum(nil))
	return receipt, digest, nil
}
