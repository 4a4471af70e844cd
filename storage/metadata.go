package storage

import (
	"crypto/sha1"
	"fmt"
	"strings"

	"github.com/RIZAmohammadkhan/Serma/bencode"
	"github.com/RIZAmohammadkhan/Serma/model"
)

// rawInfoDict mirrors the subset of BitTorrent's info dictionary that
// Serma cares about: a display name, and either a single-file length or
// a multi-file list.
type rawInfoDict struct {
	Name   string `bencode:"name"`
	Length int64  `bencode:"length,omitempty"`
	Files  []struct {
		Length int64    `bencode:"length"`
		Path   []string `bencode:"path"`
	} `bencode:"files,omitempty"`
}

// verifyAndParseInfoDict checks infoDict hashes to ih, then extracts its
// display name and file list.
func verifyAndParseInfoDict(ih model.InfoHash, infoDict []byte) (title string, files []model.File, err error) {
	sum := sha1.Sum(infoDict)
	if string(sum[:]) != string(ih.Bytes()) {
		return "", nil, ErrHashMismatch
	}

	var raw rawInfoDict
	if err := bencode.Unmarshal(infoDict, &raw); err != nil {
		return "", nil, fmt.Errorf("storage: decode info dict: %w", err)
	}

	if len(raw.Files) == 0 {
		return raw.Name, []model.File{{Name: raw.Name, Length: raw.Length}}, nil
	}

	files = make([]model.File, 0, len(raw.Files))
	for _, f := range raw.Files {
		files = append(files, model.File{Name: strings.Join(f.Path, "/"), Length: f.Length})
	}
	return raw.Name, files, nil
}
