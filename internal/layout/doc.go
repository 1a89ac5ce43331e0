// Package layout maps the deployer's logical directories to filesystem paths
// under an app-private data root:
//
//	codepush/
//	  currentPackage.json
//	  oldPackage.json
//	  download/unzipped/
//	  deploy/versions/<packageHash>/
package layout
