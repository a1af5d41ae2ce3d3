// Package optimo tunes several flywheel parameters at once with a
// derivative-free optimizer. Each objective evaluation is one simulation
// frame; the frame value is the quantity maximized.
package optimo
