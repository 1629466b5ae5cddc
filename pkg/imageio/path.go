package imageio

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/matzehuels/stylewct/pkg/errors"
)

// PathOptions derives an output path from an input path.
type PathOptions struct {
	Dir      string // output directory; empty keeps the input's directory
	Ext      string // replacement extension, with or without the dot
	NoExt    bool   // drop the extension entirely
	Tag      string // appended to the base name as "-tag"
	StripTag bool   // cut the base name at its first "-"
}

// OutputPath builds a file path next to (or, with Dir, away from) path.
//
//	OutputPath("in/cat.jpg", PathOptions{Dir: "out", Ext: "png", Tag: "starry"}) // out/cat-starry.png
//	OutputPath("cat-starry.png", PathOptions{StripTag: true})                     // cat.png
func OutputPath(path string, o PathOptions) string {
	dir := o.Dir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	switch {
	case o.NoExt:
		ext = ""
	case o.Ext != "":
		ext = o.Ext
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
	}

	if o.StripTag {
		base, _, _ = strings.Cut(base, "-")
	} else if o.Tag != "" {
		base = base + "-" + o.Tag
	}
	return filepath.Join(dir, base+ext)
}

// imageExts lists the extensions ListImages picks up.
var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".webp": true,
}

// ListImages returns the image files directly inside dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "directory not found: %s", dir)
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	slices.Sort(out)
	return out, nil
}

// FilePair is a content image with the style (and optional saliency map)
// it is transferred with.
type FilePair struct {
	Content  string
	Style    string
	Saliency string
}

// Name is the base name of the content file without extension, tagged with
// the style's base name.
func (p FilePair) Name() string {
	return filepath.Base(OutputPath(p.Content, PathOptions{NoExt: true, Tag: stem(p.Style)}))
}

// PairDirs matches every image in contentDir with the style image of the
// same name in styleDir. When styleDir holds a single image, that image is
// used for every content image. A non-empty salDir is matched the same way
// by name. Content images without a style are returned in missing.
func PairDirs(contentDir, styleDir, salDir string) (pairs []FilePair, missing []string, err error) {
	contents, err := ListImages(contentDir)
	if err != nil {
		return nil, nil, err
	}
	styles, err := ListImages(styleDir)
	if err != nil {
		return nil, nil, err
	}
	if len(contents) == 0 {
		return nil, nil, errors.New(errors.ErrCodeNotFound, "no images in %s", contentDir)
	}
	if len(styles) == 0 {
		return nil, nil, errors.New(errors.ErrCodeNotFound, "no images in %s", styleDir)
	}
	var sals []string
	if salDir != "" {
		if sals, err = ListImages(salDir); err != nil {
			return nil, nil, err
		}
	}

	for _, c := range contents {
		s := byStem(styles, stem(c))
		if s == "" && len(styles) == 1 {
			s = styles[0]
		}
		if s == "" {
			missing = append(missing, c)
			continue
		}
		p := FilePair{Content: c, Style: s}
		if sals != nil {
			if p.Saliency = byStem(sals, stem(c)); p.Saliency == "" {
				missing = append(missing, c)
				continue
			}
		}
		pairs = append(pairs, p)
	}
	return pairs, missing, nil
}

func stem(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func byStem(paths []string, s string) string {
	for _, p := range paths {
		if stem(p) == s {
			return p
		}
	}
	return ""
}
