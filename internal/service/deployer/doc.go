// Package deployer turns a downloaded update artifact into an installed package.
//
// An install runs strictly in sequence: the artifact is unzipped into a clean
// scratch directory, assembled into codepush/deploy/versions/<hash> either as a
// full copy or as a diff on top of the current package, verified against its
// declared hash and optional release signature, recorded in the metadata slots
// and finally handed to the native installer. Any failure leaves the previously
// installed package authoritative.
package deployer
