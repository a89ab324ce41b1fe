package patch

// esptoolBranchHead starts the replacement; Apply matches the branch it
// replaces by the same condition.
const esptoolBranchHead = `elif upload_protocol == "esptool":`

// marker is a line only a patched builder contains
const marker = "def install_esptool():"

// esptoolBranch replaces the body of the builder's esptool upload branch. It
// installs esptool into the PlatformIO python when missing and runs it as a
// module instead of the esptool.py bundled with the platform package.
const esptoolBranch = `
    def install_esptool():
        import subprocess
        from shutil import which
        try:
            if not which("esptool"):
                print("Installing esptool via pip...")
                subprocess.check_call([env.subst("$PYTHONEXE"), "-m", "pip", "install", "--upgrade", "esptool"])
        except Exception as e:
            sys.stderr.write(f"Failed to install esptool: {e}")
            env.Exit(1)

    # Ensure esptool is installed
    install_esptool()

    # Update UPLOADER to use the installed esptool
    env.Replace(
        UPLOADER="esptool",
        UPLOADERFLAGS=[
            "--chip", mcu,
            "--port", '"$UPLOAD_PORT"',
            "--baud", "$UPLOAD_SPEED",
            "--before", "default_reset",
            "--after", "hard_reset",
            "write_flash", "-z",
            "--flash_mode", "${__get_board_flash_mode(__env__)}",
            "--flash_freq", "${__get_board_f_flash(__env__)}",
            "--flash_size", "detect"
        ],
        UPLOADCMD='"$PYTHONEXE" -m esptool $UPLOADERFLAGS $ESP32_APP_OFFSET $SOURCE'
    )

    for image in env.get("FLASH_EXTRA_IMAGES", []):
        env.Append(UPLOADERFLAGS=[image[0], env.subst(image[1])])

    if "uploadfs" in COMMAND_LINE_TARGETS:
        env.Replace(
            UPLOADERFLAGS=[
                "--chip", mcu,
                "--port", '"$UPLOAD_PORT"',
                "--baud", "$UPLOAD_SPEED",
                "--before", "default_reset",
                "--after", "hard_reset",
                "write_flash", "-z",
                "--flash_mode", "$BOARD_FLASH_MODE",
                "--flash_size", "detect",
                "$SPIFFS_START"
            ],
            UPLOADCMD='"$PYTHONEXE" -m esptool $UPLOADERFLAGS $SOURCE',
        )

    upload_actions = [
        env.VerboseAction(env.AutodetectUploadPort, "Looking for upload port..."),
        env.VerboseAction("$UPLOADCMD", "Uploading $SOURCE")
    ]
`
