package callback

const contentTypeHTML = "text/html; charset=utf-8"

const successPage = `<html>
	<body>
		<h1>Authorization Successful</h1>
		<p>Your account has been saved. You can now close this window and return to the application.</p>
		<script>window.close();</script>
	</body>
</html>
`

const failurePage = `<html>
	<body>
		<h1>Authorization Failed</h1>
		<p>The account could not be authorized. Check the application log for details and try again.</p>
	</body>
</html>
`

const notSavedPage = `<html>
	<body>
		<h1>Authorization Incomplete</h1>
		<p>A token was obtained but could not be saved. Check the application log for details.</p>
	</body>
</html>
`
