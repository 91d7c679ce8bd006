// Package dataset reads IDX-format MNIST image and label files and prepares
// digit subsets for classification runs. Pixels are scaled to [0,1] here;
// the engine assumes that normalization and never rescales.
package dataset

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/pthm-cable/neocortex/sim"
)

const (
	imageMagic = 0x00000803
	labelMagic = 0x00000801
)

// Sample pairs an image with its one-hot label over the selected digit set.
type Sample struct {
	Image sim.Image
	Label []float64 // one-hot over the digit subset, in subset order
	Digit int       // original digit value
}

// LoadImages reads an IDX image file, raw or gzipped, scaling pixels into
// [0,1].
func LoadImages(path string) ([]sim.Image, error) {
	data, err := readMaybeGzip(path)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(data)
	var hdr [4]uint32
	for i := range hdr {
		if err := binary.Read(r, binary.BigEndian, &hdr[i]); err != nil {
			return nil, fmt.Errorf("dataset: reading %s header: %w", path, err)
		}
	}
	if hdr[0] != imageMagic {
		return nil, fmt.Errorf("dataset: %s: magic 0x%08x is not an IDX image file", path, hdr[0])
	}
	count, h, w := int(hdr[1]), int(hdr[2]), int(hdr[3])
	imgs := make([]sim.Image, count)
	pix := make([]byte, h*w)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, pix); err != nil {
			return nil, fmt.Errorf("dataset: %s: truncated at image %d: %w", path, i, err)
		}
		img := sim.NewImage(h, w)
		for j, b := range pix {
			img.Pix[j] = float64(b) / 255.0
		}
		imgs[i] = img
	}
	return imgs, nil
}

// LoadLabels reads an IDX label file, raw or gzipped.
func LoadLabels(path string) ([]int, error) {
	data, err := readMaybeGzip(path)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(data)
	var hdr [2]uint32
	for i := range hdr {
		if err := binary.Read(r, binary.BigEndian, &hdr[i]); err != nil {
			return nil, fmt.Errorf("dataset: reading %s header: %w", path, err)
		}
	}
	if hdr[0] != labelMagic {
		return nil, fmt.Errorf("dataset: %s: magic 0x%08x is not an IDX label file", path, hdr[0])
	}
	raw := make([]byte, int(hdr[1]))
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("dataset: %s: truncated labels: %w", path, err)
	}
	labels := make([]int, len(raw))
	for i, b := range raw {
		labels[i] = int(b)
	}
	return labels, nil
}

// Subset draws perDigit random samples of every requested digit and shuffles
// the result. Labels are one-hot over the digit list, in list order.
func Subset(imgs []sim.Image, labels []int, digits []int, perDigit int, rng *rand.Rand) ([]Sample, error) {
	if len(imgs) != len(labels) {
		return nil, fmt.Errorf("dataset: %d images but %d labels", len(imgs), len(labels))
	}
	byDigit := make(map[int][]int)
	for i, l := range labels {
		byDigit[l] = append(byDigit[l], i)
	}

	samples := make([]Sample, 0, len(digits)*perDigit)
	for di, d := range digits {
		idxs := byDigit[d]
		if len(idxs) == 0 {
			return nil, fmt.Errorf("dataset: no samples of digit %d", d)
		}
		for k := 0; k < perDigit; k++ {
			oneHot := make([]float64, len(digits))
			oneHot[di] = 1
			samples = append(samples, Sample{
				Image: imgs[idxs[rng.Intn(len(idxs))]],
				Label: oneHot,
				Digit: d,
			})
		}
	}
	rng.Shuffle(len(samples), func(i, j int) {
		samples[i], samples[j] = samples[j], samples[i]
	})
	return samples, nil
}

func readMaybeGzip(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, _ := br.Peek(2)
	var r io.Reader = br
	if len(head) == 2 && head[0] == 0x1f && head[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("dataset: %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("dataset: reading %s: %w", path, err)
	}
	return data, nil
}
