package asset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/disintegration/imaging"
	"image"
	"image/color"
)

// Image is one illustration bound to a topic.
type Image struct {
	TopicID string `json:"topic_id"`
	Path    string `json:"path"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// Library indexes illustrations by topic.
type Library map[string]Image

// PathFor returns the illustration path for a topic.
func (l Library) PathFor(topicID string) (string, bool) {
	img, ok := l[topicID]
	if !ok {
		return "", false
	}
	return img.Path, true
}

// TopicIDs returns the indexed topics in sorted order.
func (l Library) TopicIDs() []string {
	ids := make([]string, 0, len(l))
	for id := range l {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadLibrary scans a directory of <topicID>.png files into a library,
// probing each image's dimensions.
func LoadLibrary(dir string) (Library, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read image directory: %w", err)
	}
	lib := make(Library)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".png" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		img, err := imaging.Open(path)
		if err != nil {
			return nil, fmt.Errorf("probe image %s: %w", entry.Name(), err)
		}
		topicID := entry.Name()[:len(entry.Name())-len(".png")]
		bounds := img.Bounds()
		lib[topicID] = Image{
			TopicID: topicID,
			Path:    path,
			Width:   bounds.Dx(),
			Height:  bounds.Dy(),
		}
	}
	return lib, nil
}

// Normalize decodes the image at srcPath, fits it inside width x height with
// black letterboxing, and writes the result as PNG to dstPath. The renderer
// then receives uniform frames and never rescales per scene.
func Normalize(srcPath, dstPath string, width, height int) (Image, error) {
	src, err := imaging.Open(srcPath)
	if err != nil {
		return Image{}, fmt.Errorf("open image: %w", err)
	}
	fitted := imaging.Fit(src, width, height, imaging.Lanczos)
	canvas := imaging.New(width, height, color.NRGBA{0, 0, 0, 255})
	offset := image.Pt((width-fitted.Bounds().Dx())/2, (height-fitted.Bounds().Dy())/2)
	composed := imaging.Paste(canvas, fitted, offset)
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return Image{}, fmt.Errorf("create image directory: %w", err)
	}
	if err := imaging.Save(composed, dstPath); err != nil {
		return Image{}, fmt.Errorf("save image: %w", err)
	}
	return Image{Path: dstPath, Width: width, Height: height}, nil
}
