package stowfront

import (
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// EntryKind distinguishes files from the synthetic folders produced by a
// delimiter listing.
type EntryKind string

const (
	KindFile   EntryKind = "file"
	KindFolder EntryKind = "folder"
)

// ListingRecord is one entry of a directory listing call. SizeBytes and
// UploadedAt are only meaningful for files.
type ListingRecord struct {
	Name       string
	Kind       EntryKind
	SizeBytes  int64
	UploadedAt time.Time
}

// PlaceholderName is the marker file the backend uses to keep empty folders alive.
const PlaceholderName = ".bzEmpty"

// IsPlaceholder reports whether name is an empty-folder marker.
func IsPlaceholder(name string) bool {
	return name == PlaceholderName || strings.HasSuffix(name, "/"+PlaceholderName)
}

// Category drives the icon shown next to a listing entry.
type Category string

const (
	CategoryUp      Category = "up"
	CategoryFolder  Category = "folder"
	CategoryImage   Category = "image"
	CategoryText    Category = "text"
	CategoryVideo   Category = "video"
	CategoryAudio   Category = "audio"
	CategoryArchive Category = "archive"
	CategoryGeneric Category = "generic"
)

var extensionCategories = map[string]Category{
	".jpg": CategoryImage, ".jpeg": CategoryImage, ".png": CategoryImage, ".bmp": CategoryImage,
	".tif": CategoryImage, ".tiff": CategoryImage, ".gif": CategoryImage, ".webp": CategoryImage,
	".tga": CategoryImage, ".cr2": CategoryImage, ".nef": CategoryImage, ".ico": CategoryImage,

	".pub": CategoryText, ".txt": CategoryText, ".ini": CategoryText,
	".cfg": CategoryText, ".css": CategoryText, ".js": CategoryText,

	".mp4": CategoryVideo, ".mkv": CategoryVideo, ".wmv": CategoryVideo, ".flv": CategoryVideo,
	".hls": CategoryVideo, ".ogv": CategoryVideo, ".avi": CategoryVideo,

	".mp3": CategoryAudio, ".wma": CategoryAudio, ".flac": CategoryAudio,
	".ogg": CategoryAudio, ".aac": CategoryAudio, ".m4a": CategoryAudio,

	".zip": CategoryArchive, ".tgz": CategoryArchive, ".gz": CategoryArchive, ".tar": CategoryArchive,
	".7z": CategoryArchive, ".rar": CategoryArchive, ".xz": CategoryArchive,
}

// CategoryOf maps a file name to its display category by extension,
// falling back to CategoryGeneric.
func CategoryOf(name string) Category {
	if c, ok := extensionCategories[strings.ToLower(path.Ext(name))]; ok {
		return c
	}
	return CategoryGeneric
}

const (
	kib = 1 << 10
	mib = 1 << 20
	gib = 1 << 30
	tib = 1 << 40
)

// HumanSize formats a byte count with binary prefixes: raw bytes under 4 KiB,
// one decimal for KiB and MiB, two decimals for GiB and TiB.
// 4404019 becomes "4.2 MiB".
func HumanSize(n int64) string {
	switch {
	case n < 0:
		return "0 B"
	case n < 4*kib:
		return fmt.Sprintf("%d B", n)
	case n < mib:
		return fmt.Sprintf("%.1f KiB", float64(n)/kib)
	case n < gib:
		return fmt.Sprintf("%.1f MiB", float64(n)/mib)
	case n < tib:
		return fmt.Sprintf("%.2f GiB", float64(n)/gib)
	default:
		return fmt.Sprintf("%.2f TiB", float64(n)/tib)
	}
}

// ListingEntry is one rendered row of a directory page.
type ListingEntry struct {
	Link     string
	Name     string
	Category Category
	Size     string
	Uploaded string
}

// Listing is the render-ready view of one directory.
type Listing struct {
	// Prefix is the full listing prefix, e.g. "photos/2024/".
	Prefix string
	// Title is the last folder name of Prefix, or "/" at the bucket root.
	Title   string
	Entries []ListingEntry
	Folders int
	Files   int
}

// IsEmpty reports whether the prefix matched no folders and no files.
func (l Listing) IsEmpty() bool {
	return l.Folders == 0 && l.Files == 0
}

// BuildListing filters placeholder markers out of records and orders the
// rest: an "up a level" entry (unless at the root), then folders, then files,
// each group in backend order.
func BuildListing(prefix string, records []ListingRecord) Listing {
	var folders, files []ListingRecord
	for _, rec := range records {
		switch {
		case IsPlaceholder(rec.Name):
		case rec.Kind == KindFolder:
			folders = append(folders, rec)
		default:
			files = append(files, rec)
		}
	}

	l := Listing{
		Prefix:  prefix,
		Title:   listingTitle(prefix),
		Folders: len(folders),
		Files:   len(files),
		Entries: make([]ListingEntry, 0, len(folders)+len(files)+1),
	}

	if prefix != "" {
		l.Entries = append(l.Entries, ListingEntry{Link: "..", Name: "Up a Level", Category: CategoryUp})
	}

	for _, f := range folders {
		name := strings.TrimPrefix(f.Name, prefix)
		l.Entries = append(l.Entries, ListingEntry{
			Link:     relativeLink(name),
			Name:     name,
			Category: CategoryFolder,
		})
	}

	for _, f := range files {
		name := strings.TrimPrefix(f.Name, prefix)
		l.Entries = append(l.Entries, ListingEntry{
			Link:     relativeLink(name),
			Name:     name,
			Category: CategoryOf(name),
			Size:     HumanSize(f.SizeBytes),
			Uploaded: f.UploadedAt.UTC().Format(http.TimeFormat),
		})
	}

	return l
}

func listingTitle(prefix string) string {
	trimmed := strings.TrimSuffix(prefix, "/")
	if trimmed == "" {
		return "/"
	}
	return path.Base(trimmed)
}

// relativeLink escapes a name for use as a relative href. url.URL prefixes
// "./" when the first segment would otherwise parse as a scheme.
func relativeLink(name string) string {
	return (&url.URL{Path: name}).String()
}
