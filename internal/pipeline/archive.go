package pipeline

import (
	"archive/zip"
	"bytes"
	"fmt"

	"pimphoto/internal"
)

// ArchiveName builds the archive filename for one accepted image. The
// per-code counter keeps names unique without needing the source URL or the
// platform-internal id.
func ArchiveName(prefix, code, tag string, counter int) string {
	return fmt.Sprintf("%s%s-%s-h%d.jpg", prefix, code, tag, counter)
}

// BuildArchive assembles the accepted photo sets into a ZIP. Sets and images
// are written in acceptance order so identical input yields an identical
// archive.
func BuildArchive(sets []*internal.ProductPhotoSet, prefix, tag string) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	zw := zip.NewWriter(buf)

	for _, set := range sets {
		for _, img := range set.Images {
			w, err := zw.Create(ArchiveName(prefix, img.CanonicalCode, tag, img.Counter))
			if err != nil {
				return nil, err
			}
			if _, err := w.Write(img.JPEGBytes); err != nil {
				return nil, err
			}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
