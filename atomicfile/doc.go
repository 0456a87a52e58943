/*
Package atomicfile replaces the content of a file without ever exposing
a partially written file at the destination path.

To write to files in a robust way we should:

- write to a temporary file in the same directory as the destination

- handle errors returned by `Write()`, `Sync()` and `Close()`

- remove the temporary file if any of them failed

- rename the temporary file over the destination only after
everything succeeded

The diary store uses it for every save:

	func saveDiary(path string, d []byte) error {
		w, err := atomicfile.New(path)
		if err != nil {
			return err
		}
		// removes the temporary file if we return before Close()
		defer w.RemoveIfNotClosed()

		_, err = w.Write(d)
		if err != nil {
			return err
		}
		return w.Close()
	}

WriteFile does the above in one call.
*/
package atomicfile
