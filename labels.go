package yolostream

import (
	"bufio"
	"fmt"
	"github.com/pkg/errors"
	"os"
	"strings"
)

// Vocabulary is the ordered list of class labels a Model was trained on,
// indexed by class ID.  It is read only once loaded and safe to share
// between goroutines
type Vocabulary []string

// COCOLabels is the class vocabulary of the reference deployment.  It is the
// COCO 80 class list followed by three extra classes
var COCOLabels = Vocabulary{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus",
	"train", "truck", "boat", "traffic light", "fire hydrant",
	"stop sign", "parking meter", "bench", "bird", "cat", "dog",
	"horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe",
	"backpack", "umbrella", "handbag", "tie", "suitcase", "frisbee",
	"skis", "snowboard", "sports ball", "kite", "baseball bat",
	"baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl",
	"banana", "apple", "sandwich", "orange", "broccoli", "carrot",
	"hot dog", "pizza", "donut", "cake", "chair", "couch", "potted plant",
	"bed", "dining table", "toilet", "TV", "laptop", "mouse", "remote",
	"keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear",
	"hair drier", "toothbrush", "Goggle", "sunglass", "pen",
}

// Label returns the human readable label for the given class ID.  An ID
// outside the vocabulary means the model and label list do not match, which
// is a programming error, so Label panics
func (v Vocabulary) Label(id int) string {

	if id < 0 || id >= len(v) {
		panic(fmt.Sprintf("class id %d out of range for vocabulary of %d labels", id, len(v)))
	}

	return v[id]
}

// Len returns the number of classes in the vocabulary
func (v Vocabulary) Len() int {
	return len(v)
}

// LoadLabels reads the labels used to train the Model from the given text file.
// It should contain one label per line.  Blank lines are skipped
func LoadLabels(file string) (Vocabulary, error) {

	// open the file
	f, err := os.Open(file)

	if err != nil {
		return nil, errors.Wrap(err, "error opening label file")
	}

	defer f.Close()

	// create a scanner to read the file.
	scanner := bufio.NewScanner(f)

	var labels Vocabulary

	// read and trim each line
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		labels = append(labels, line)
	}

	// check for errors during scanning
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "error reading label file %s", file)
	}

	if len(labels) == 0 {
		return nil, errors.Errorf("no labels found in %s", file)
	}

	return labels, nil
}
