// Package platform hides the filesystem differences the merge engine and the
// doctor run into: symlinks that Windows refuses without developer mode, and
// permission bits that Windows does not have.
package platform
