// Package util provides content hashing and Markdown front matter parsing.
package util

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gomarkdown/markdown"
	"github.com/mmarkdown/mmark/v2/mast"
)

var ErrNoFrontMatter = errors.New("invalid front matter format")

var frontMatterDelimiter = []byte("%%%")

// FrontMatter is the TOML block between %%% delimiters at the top of a
// Markdown document.
type FrontMatter struct {
	*mast.TitleData
	// Consumed is the number of bytes of the normalized input the block spans.
	Consumed int
}

func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

func ContentHashString(content string) string {
	return ContentHash([]byte(content))
}

// GetFrontMatter parses the leading front matter block of md.
func GetFrontMatter(md []byte) (*FrontMatter, error) {
	info, _, err := SplitFrontMatter(md)
	return info, err
}

// SplitFrontMatter returns the parsed front matter and the remaining body.
func SplitFrontMatter(md []byte) (*FrontMatter, []byte, error) {
	md = markdown.NormalizeNewlines(md)
	md = bytes.TrimLeft(md, "\n \t\r")

	delim := frontMatterDelimiter
	if len(md) < 2*len(delim) || !bytes.HasPrefix(md, delim) {
		return nil, nil, ErrNoFrontMatter
	}

	second := bytes.Index(md[len(delim):], delim)
	if second == -1 {
		return nil, nil, ErrNoFrontMatter
	}

	block := md[len(delim) : len(delim)+second]
	end := len(delim) + second + len(delim)
	if end < len(md) && md[end] == '\n' {
		end++
	}
	if strings.TrimSpace(string(block)) == "" {
		return nil, nil, ErrNoFrontMatter
	}

	info := &FrontMatter{TitleData: &mast.TitleData{}}
	if _, err := toml.Decode(string(block), info.TitleData); err != nil {
		return nil, nil, fmt.Errorf("failed to decode front matter: %w", err)
	}

	if info.Language == "" {
		info.Language = "en"
	}
	info.Consumed = end

	return info, md[end:], nil
}
