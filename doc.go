// Package boltzmann implements block Gibbs sampling over Restricted
// Boltzmann Machines (RBMs) and multimodal Deep Boltzmann Machines (DBMs).
//
// A model is an ordered stack of layer pairs (see LayerPair); each pair
// connects a visible-role layer to a hidden-role layer, and adjacent pairs
// share a layer. Sampling maintains batches of particles (one matrix per
// layer, rows = particles) and alternates conditional updates between layers.
// Parameter learning, persistence and model construction from configuration
// are the business of other packages; this one assumes materialized weights
// and biases and only does inference.
package boltzmann
