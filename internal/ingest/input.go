package ingest

import (
	"context"
	"image"
	"io"
)

// Kind selects the handling path for an Input.
type Kind int

const (
	KindFile Kind = iota
	KindProvider
	KindImage
	KindAudio
	KindText
	KindURL
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindProvider:
		return "provider"
	case KindImage:
		return "image"
	case KindAudio:
		return "audio"
	case KindText:
		return "text"
	case KindURL:
		return "url"
	}
	return "unknown"
}

// Origin is where an input entered the application; it decides the size cap.
type Origin int

const (
	OriginPasteboard Origin = iota
	OriginFilePicker
	OriginDrop
	OriginShare
	OriginRecording
)

const (
	SmallLimit int64 = 20 << 20
	LargeLimit int64 = 50 << 20
)

// Limit is the largest payload accepted from this origin.
func (o Origin) Limit() int64 {
	switch o {
	case OriginPasteboard, OriginFilePicker:
		return SmallLimit
	}
	return LargeLimit
}

// Provider is a clipboard or share-sheet item that offers its content under
// one or more type identifiers, most specific first.
type Provider interface {
	Types() []string
	Open(ctx context.Context, typeID string) (io.ReadCloser, error)
	SuggestedName() string
}

type Input struct {
	Kind   Kind
	Origin Origin
	// Name overrides the generated item name when set.
	Name     string
	Path     string
	Text     string
	URL      string
	Image    image.Image
	Provider Provider
}

func FileInput(path string, origin Origin) Input {
	return Input{Kind: KindFile, Origin: origin, Path: path}
}

func AudioInput(path, name string) Input {
	return Input{Kind: KindAudio, Origin: OriginRecording, Path: path, Name: name}
}

func ImageInput(img image.Image, origin Origin) Input {
	return Input{Kind: KindImage, Origin: origin, Image: img}
}

func TextInput(text string, origin Origin) Input {
	return Input{Kind: KindText, Origin: origin, Text: text}
}

func URLInput(rawURL string, origin Origin) Input {
	return Input{Kind: KindURL, Origin: origin, URL: rawURL}
}

func ProviderInput(p Provider, origin Origin) Input {
	return Input{Kind: KindProvider, Origin: origin, Provider: p}
}
