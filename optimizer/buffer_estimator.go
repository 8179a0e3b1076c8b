package optimizer

import "github.com/kida-ssg/kida/parser"

const (
	minBufferBytes  = 256
	bufferHeadroom  = 1.5
	outputOpHeadroom = 1.2
	outputOpThreshold = 100
)

// EstimateBuffer counts the bytes of concrete TextNode data in the tree and
// the number of output operations (TextNode + VariableNode emits), per
// spec 4.3 #5. The returned byte estimate is
// max(256, int(static_bytes * 1.5)); AllocationHint multiplies that
// estimate by a further 1.2 once output operations reach 100
// (spec 4.4 #1).
func EstimateBuffer(tmpl *parser.TemplateNode) (int, int) {
	staticBytes := 0
	outputOps := 0
	walkForEstimate(tmpl.Children, &staticBytes, &outputOps)

	estimate := int(float64(staticBytes) * bufferHeadroom)
	if estimate < minBufferBytes {
		estimate = minBufferBytes
	}
	return estimate, outputOps
}

func walkForEstimate(nodes []parser.Node, staticBytes, outputOps *int) {
	for _, n := range nodes {
		switch node := n.(type) {
		case *parser.TextNode:
			*staticBytes += len(node.Content)
			*outputOps++
		case *parser.VariableNode:
			*outputOps++
		case *parser.BlockNode:
			walkForEstimate(node.Body, staticBytes, outputOps)
		case *parser.IfNode:
			walkForEstimate(node.Body, staticBytes, outputOps)
			walkForEstimate(node.Else, staticBytes, outputOps)
			for _, e := range node.ElseIfs {
				walkForEstimate(e.Body, staticBytes, outputOps)
			}
		case *parser.ForNode:
			walkForEstimate(node.Body, staticBytes, outputOps)
			walkForEstimate(node.Else, staticBytes, outputOps)
		}
	}
}

// AllocationHint returns the pre-allocation capacity the code generator
// should use for a render call's output buffer (spec 4.4 #1).
func AllocationHint(estimatedBytes, outputOps int) int {
	if outputOps >= outputOpThreshold {
		return int(float64(estimatedBytes) * outputOpHeadroom)
	}
	return estimatedBytes
}
