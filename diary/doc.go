/*
Package diary stores one entry per calendar date in a single tsv file
(see package tsv for the format).

The whole file is read on every Load and re-written on every save.
The file is small (one line per day) and it keeps saving simple:

  - copy current file to a timestamped backup
  - serialize all entries sorted by date
  - write to a temporary file in the same directory
  - rename temporary file over the diary file

A failure in any step after the backup leaves the diary file as it was.

Operations that modify the diary return Result instead of an error so
that callers (cli, http server) can show the message to the user.

	store, err := diary.Open(path, nil)
	if err != nil {
		return err
	}
	res := store.Upsert(&diary.Entry{Date: "20250101", Title: "New Year"})
	if !res.Success {
		fmt.Printf("failed to save: %s\n", res.Error)
	}
*/
package diary
